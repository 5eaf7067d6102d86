package domain

// StatusSuccess is the status value of a successful index response.
const StatusSuccess = "success"

// Index service endpoints.
const (
	EndpointFirstStage  = "/first-stage"
	EndpointSecondStage = "/second-stage"
	EndpointTopK        = "/topk"
	EndpointInitInfo    = "/init-info"
	EndpointOramInfo    = "/oram-info"
)

// TopKPage is the round query response. Results stay raw until normalized.
type TopKPage struct {
	Status  string           `json:"status"`
	Count   int              `json:"count"`
	Results []map[string]any `json:"results"`
	Error   string           `json:"error,omitempty"`
}

// FirstStagePage is the first-stage response of the broadcast protocol.
type FirstStagePage struct {
	Status         string           `json:"status"`
	Error          string           `json:"error,omitempty"`
	InitialResults []map[string]any `json:"initialResults"`
	CacheKey       string           `json:"cacheKey"`
	// TimeCost is passed through as sent; the backend is not consistent about its type.
	TimeCost any `json:"time_cost"`
}

// SecondStagePage is the path pair response of the broadcast protocol.
type SecondStagePage struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	PathBefore any    `json:"path_before"`
	PathAfter  any    `json:"path_after"`
}

// InitInfo describes index initialisation.
type InitInfo struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// OramStats is the index runtime counters block; absent counters stay nil.
type OramStats struct {
	TotalBlocks   *int64 `json:"totalBlocks,omitempty"`
	AccessCount   *int64 `json:"accessCount,omitempty"`
	CurrentHeight *int64 `json:"currentHeight,omitempty"`
}

// OramInfo is the index runtime info response.
type OramInfo struct {
	Status string    `json:"status"`
	Info   OramStats `json:"info"`
}
