package model

type Route struct {
	PrimaryIdentifier string `groups:"basic"`
	PrimaryName       string `groups:"basic"`
}
