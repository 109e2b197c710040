package models

// SearchData is the payload of a successful search.
type SearchData struct {
	Records []Record `json:"records"`
	Count   int      `json:"count"`
}

// SearchResponse is the envelope returned by /api/promotores.
type SearchResponse struct {
	OK    bool        `json:"ok"`
	Data  *SearchData `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Health is the body of /healthz.
type Health struct {
	OK              bool     `json:"ok"`
	File            string   `json:"file"`
	SheetRequested  string   `json:"sheet_requested"`
	SheetsAvailable []string `json:"sheets_available"`
	HeaderRow       int      `json:"header_row"`
	Rows            int      `json:"rows"`
	Error           *string  `json:"error"`
}

// ErrorText returns the reported load error, or "" when there is none.
func (h Health) ErrorText() string {
	if h.Error == nil {
		return ""
	}
	return *h.Error
}

// QRResultType is the message type posted by a scanner window.
const QRResultType = "QR_RESULT"

// QRMessage is the cross-context message a scanner window posts back.
type QRMessage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// QRDecodeData is the payload of a successful /api/qr upload.
type QRDecodeData struct {
	Value string `json:"value"`
}

// QRDecodeResponse is the envelope returned by /api/qr.
type QRDecodeResponse struct {
	OK    bool          `json:"ok"`
	Data  *QRDecodeData `json:"data,omitempty"`
	Error string        `json:"error,omitempty"`
}

// APIError carries an ok:false message reported by the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}
