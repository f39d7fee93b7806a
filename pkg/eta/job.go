package eta

// Job is the queue payload asking for an ETA recomputation for one
// vehicle. Enqueued by the ingest path after every accepted report.
type Job struct {
	VehicleRef string `json:"vehicleRef"`
}
