package queue

// DocumentRef points at a raw document payload in object storage.
type DocumentRef struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Key      string `json:"key"`
}

// IngestMessage is the unit of work the server hands to the worker. The
// payloads themselves live in object storage; the message only carries
// their keys.
type IngestMessage struct {
	RunID     string        `json:"run_id"`
	Dataset   string        `json:"dataset"`
	Pipeline  string        `json:"pipeline"`
	Documents []DocumentRef `json:"documents"`
}
