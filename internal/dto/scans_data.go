package dto

// ScansData is a paginated response payload for the scan history.
type ScansData struct {
	Scans       []ScanInfo `json:"scans"`
	Size        int64      `json:"size"`
	MaxSize     int64      `json:"maxSize"`
	Length      int        `json:"length"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Limit       int        `json:"pageSize"`
}
