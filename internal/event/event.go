// Package event parses bucket upload notifications from the ingest queue.
package event

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"hlsmill/internal/faults"
)

// TestEventName marks the synthetic notification a bucket emits when its
// notification configuration is saved.
const TestEventName = "s3:TestEvent"

// Bucket identifies the bucket an object landed in.
type Bucket struct {
	Name string `json:"name"`
}

// Object identifies the uploaded object.
type Object struct {
	Key string `json:"key"`
}

// Record describes one uploaded object within a notification.
type Record struct {
	Bucket Bucket `json:"bucket"`
	Object Object `json:"object"`
}

// Notification is the queue message payload. Upload notifications carry
// records; test notifications carry the service and event fields instead.
type Notification struct {
	Service string   `json:"service"`
	Event   string   `json:"event"`
	Records []Record `json:"records"`
}

var acceptedExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
}

// Parse decodes a queue message body. Bodies that are not valid JSON, or
// that are neither a test notification nor carry at least one record,
// are rejected.
func Parse(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, faults.Wrap(faults.ErrValidation, "decode notification", err)
	}
	if !n.IsTest() && len(n.Records) == 0 {
		return Notification{}, faults.Wrap(faults.ErrValidation, "notification has no records", nil)
	}
	return n, nil
}

// IsTest reports whether the notification is a configuration test event
// rather than an upload.
func (n Notification) IsTest() bool {
	return n.Event == TestEventName
}

// Validate checks that a record names a bucket and key and that the key
// has an accepted container extension.
func (r Record) Validate() error {
	if r.Bucket.Name == "" {
		return faults.Wrap(faults.ErrValidation, "record missing bucket name", nil)
	}
	if r.Object.Key == "" {
		return faults.Wrap(faults.ErrValidation, "record missing object key", nil)
	}
	if !ExtensionAllowed(r.Object.Key) {
		return fmt.Errorf("%w: unsupported container format %q", faults.ErrValidation, path.Ext(r.Object.Key))
	}
	return nil
}

// ExtensionAllowed reports whether the key's extension is on the accepted
// list. The comparison is case insensitive.
func ExtensionAllowed(key string) bool {
	_, ok := acceptedExtensions[strings.ToLower(path.Ext(key))]
	return ok
}
