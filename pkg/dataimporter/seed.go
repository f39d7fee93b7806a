package dataimporter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SeedDefinition is one YAML document in a seed file. Exactly one record
// field matching Type is set.
type SeedDefinition struct {
	Type string `yaml:"type"`

	Vehicle *model.Vehicle `yaml:"vehicle"`
	Route   *model.Route   `yaml:"route"`
	Stop    *model.Stop    `yaml:"stop"`
}

func (d *SeedDefinition) Upsert(ctx context.Context, recordStore store.Store) error {
	switch d.Type {
	case "vehicle":
		return recordStore.UpsertVehicle(ctx, d.Vehicle)
	case "route":
		return recordStore.UpsertRoute(ctx, d.Route)
	case "stop":
		fixupStopLocation(d.Stop)
		return recordStore.UpsertStop(ctx, d.Stop)
	default:
		return fmt.Errorf("unknown seed record type %q", d.Type)
	}
}

// ImportSeedDirectory walks a directory of seed files and upserts every
// record. YAML files may hold multiple documents; CSV files hold stop
// sheets.
func ImportSeedDirectory(ctx context.Context, recordStore store.Store, directory string) error {
	return filepath.Walk(directory,
		func(path string, fileInfo os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if fileInfo.IsDir() {
				return nil
			}

			log.Debug().Str("path", path).Msg("Loading seed file")

			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				return importSeedYAML(ctx, recordStore, path)
			case ".csv":
				return importStopsCSV(ctx, recordStore, path)
			default:
				log.Debug().Str("path", path).Msg("Skipping unrecognised seed file")
				return nil
			}
		})
}

func importSeedYAML(ctx context.Context, recordStore store.Store, path string) error {
	seedYaml, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(seedYaml))

	for {
		var seedDefinition SeedDefinition
		if decoder.Decode(&seedDefinition) != nil {
			break
		}

		if err := seedDefinition.Upsert(ctx, recordStore); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to upsert seed record")
		}
	}

	return nil
}

func importStopsCSV(ctx context.Context, recordStore store.Store, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var stops []*model.Stop
	if err := gocsv.UnmarshalFile(file, &stops); err != nil {
		return err
	}

	for _, stop := range stops {
		fixupStopLocation(stop)

		if err := recordStore.UpsertStop(ctx, stop); err != nil {
			log.Error().Err(err).Str("stop", stop.PrimaryIdentifier).Msg("Failed to upsert Stop")
		}
	}

	log.Info().Int("stops", len(stops)).Str("path", path).Msg("Imported stop sheet")

	return nil
}

// Seed files carry flat lat/lon columns; the store wants a GeoJSON point.
func fixupStopLocation(stop *model.Stop) {
	if stop.Location == nil {
		stop.Location = model.NewLocation(stop.Longitude, stop.Latitude)
	}
}
