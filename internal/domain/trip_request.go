package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Scenario references the network modifications a request runs against.
type Scenario struct {
	ID            string            `json:"id" yaml:"id" validate:"required"`
	Modifications []json.RawMessage `json:"modifications" yaml:"-"`
}

// TripRequest is the fixed trip-planning parameter bag sent with every job.
// It is built once at startup and never mutated afterwards.
type TripRequest struct {
	Date                  string   `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	FromTime              int      `json:"fromTime" yaml:"fromTime" validate:"gte=0,lt=86400"`
	ToTime                int      `json:"toTime" yaml:"toTime" validate:"gtfield=FromTime,lte=86400"`
	AccessModes           string   `json:"accessModes" yaml:"accessModes" validate:"required"`
	DirectModes           string   `json:"directModes" yaml:"directModes" validate:"required"`
	EgressModes           string   `json:"egressModes" yaml:"egressModes" validate:"required"`
	TransitModes          string   `json:"transitModes" yaml:"transitModes" validate:"required"`
	WalkSpeed             float64  `json:"walkSpeed" yaml:"walkSpeed" validate:"gt=0"`
	BikeSpeed             float64  `json:"bikeSpeed" yaml:"bikeSpeed" validate:"gt=0"`
	CarSpeed              float64  `json:"carSpeed" yaml:"carSpeed" validate:"gt=0"`
	StreetTime            int      `json:"streetTime" yaml:"streetTime" validate:"gte=0"`
	MaxWalkTime           int      `json:"maxWalkTime" yaml:"maxWalkTime" validate:"gte=0"`
	MaxBikeTime           int      `json:"maxBikeTime" yaml:"maxBikeTime" validate:"gte=0"`
	MaxCarTime            int      `json:"maxCarTime" yaml:"maxCarTime" validate:"gte=0"`
	MinBikeTime           int      `json:"minBikeTime" yaml:"minBikeTime" validate:"gte=0"`
	MinCarTime            int      `json:"minCarTime" yaml:"minCarTime" validate:"gte=0"`
	SuboptimalMinutes     int      `json:"suboptimalMinutes" yaml:"suboptimalMinutes" validate:"gte=0"`
	ReachabilityThreshold int      `json:"reachabilityThreshold" yaml:"reachabilityThreshold" validate:"gte=0"`
	BikeSafe              int      `json:"bikeSafe" yaml:"bikeSafe"`
	BikeSlope             int      `json:"bikeSlope" yaml:"bikeSlope"`
	BikeTime              int      `json:"bikeTime" yaml:"bikeTime"`
	MaxRides              int      `json:"maxRides" yaml:"maxRides" validate:"gt=0"`
	BikeTrafficStress     int      `json:"bikeTrafficStress" yaml:"bikeTrafficStress" validate:"gte=1,lte=4"`
	BoardingAssumption    string   `json:"boardingAssumption" yaml:"boardingAssumption" validate:"oneof=RANDOM BEST_CASE WORST_CASE HALF_HEADWAY"`
	MonteCarloDraws       int      `json:"monteCarloDraws" yaml:"monteCarloDraws" validate:"gt=0"`
	Scenario              Scenario `json:"scenario" yaml:"scenario"`
}

// DefaultTripRequest returns the weekday morning walk+transit profile the
// demo network was built for.
func DefaultTripRequest() TripRequest {
	return TripRequest{
		Date:                  "2016-09-27",
		FromTime:              25200,
		ToTime:                32400,
		AccessModes:           "WALK",
		DirectModes:           "WALK",
		EgressModes:           "WALK",
		TransitModes:          "WALK,TRANSIT",
		WalkSpeed:             1.3888888888888888,
		BikeSpeed:             4.166666666666667,
		CarSpeed:              20,
		StreetTime:            90,
		MaxWalkTime:           20,
		MaxBikeTime:           20,
		MaxCarTime:            45,
		MinBikeTime:           10,
		MinCarTime:            10,
		SuboptimalMinutes:     5,
		ReachabilityThreshold: 0,
		BikeSafe:              1,
		BikeSlope:             1,
		BikeTime:              1,
		MaxRides:              8,
		BikeTrafficStress:     4,
		BoardingAssumption:    "RANDOM",
		MonteCarloDraws:       220,
		Scenario: Scenario{
			ID:            "0",
			Modifications: []json.RawMessage{},
		},
	}
}

// LoadTripRequest reads a YAML override of the default bag. Fields missing
// from the file keep their default values.
func LoadTripRequest(path string) (TripRequest, error) {
	req := DefaultTripRequest()

	data, err := os.ReadFile(path)
	if err != nil {
		return TripRequest{}, fmt.Errorf("load trip request: read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &req); err != nil {
		return TripRequest{}, fmt.Errorf("load trip request: parse yaml: %w", err)
	}

	if err := req.Validate(); err != nil {
		return TripRequest{}, fmt.Errorf("load trip request: %w", err)
	}

	return req, nil
}

func (r TripRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid trip request: %w", err)
	}
	return nil
}

// StaticRequest is the "request" member of every job descriptor.
type StaticRequest struct {
	JobID              string      `json:"jobId"`
	TransportNetworkID string      `json:"transportNetworkId"`
	Request            TripRequest `json:"request"`
}

// NewStaticRequest stamps a fresh job id onto the trip bag for one session.
func NewStaticRequest(networkID string, req TripRequest) StaticRequest {
	return StaticRequest{
		JobID:              uuid.NewString(),
		TransportNetworkID: networkID,
		Request:            req,
	}
}

// Fingerprint identifies the artifacts this request produces. The job id is
// excluded so that two sessions with the same parameters share cache entries.
func (s StaticRequest) Fingerprint(workerVersion string) (string, error) {
	b, err := json.Marshal(s.Request)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}

	h := xxhash.New()
	_, _ = h.WriteString(s.TransportNetworkID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(workerVersion)
	_, _ = h.WriteString("|")
	_, _ = h.Write(b)

	return strconv.FormatUint(h.Sum64(), 16), nil
}
