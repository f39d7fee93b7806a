package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/util"
)

// Router is the opaque routing collaborator: two coordinates in, a travel
// duration out. Calls may fail or time out; that is a transient condition
// handled by the worker, never surfaced to subscribers.
type Router interface {
	Eta(ctx context.Context, origin *model.Location, destination *model.Location) (time.Duration, error)
}

const defaultOSRMAddress = "https://router.project-osrm.org"

// OSRMRouter asks an OSRM instance for the driving duration between two
// points.
type OSRMRouter struct {
	Address string

	httpClient *http.Client
}

func NewOSRMRouter() *OSRMRouter {
	address := defaultOSRMAddress

	env := util.GetEnvironmentVariables()

	if env["FLEETLIVE_OSRM_ADDRESS"] != "" {
		address = env["FLEETLIVE_OSRM_ADDRESS"]
	}

	return &OSRMRouter{
		Address: address,

		httpClient: &http.Client{},
	}
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (r *OSRMRouter) Eta(ctx context.Context, origin *model.Location, destination *model.Location) (time.Duration, error) {
	requestURL := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		r.Address,
		origin.Longitude(), origin.Latitude(),
		destination.Longitude(), destination.Latitude(),
	)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, err
	}

	response, err := r.httpClient.Do(request)
	if err != nil {
		return 0, fmt.Errorf("routing unavailable: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("routing unavailable: OSRM returned status %d", response.StatusCode)
	}

	var routeResponse osrmRouteResponse
	if err := json.NewDecoder(response.Body).Decode(&routeResponse); err != nil {
		return 0, fmt.Errorf("routing unavailable: %w", err)
	}

	if routeResponse.Code != "Ok" || len(routeResponse.Routes) == 0 {
		return 0, fmt.Errorf("routing unavailable: OSRM returned code %s", routeResponse.Code)
	}

	return time.Duration(routeResponse.Routes[0].Duration * float64(time.Second)), nil
}
