package store

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// ErrInvalidPayload marks share links and import files that are not a JSON
// object of date keys to event arrays.
var ErrInvalidPayload = errors.New("store: invalid payload")

// DefaultImportLimit bounds import bodies; photos are embedded as data URIs
// so files can be large.
const DefaultImportLimit = 32 << 20

// Decode parses raw into Data. The top level must be a JSON object whose
// keys are YYYY-MM-DD dates and whose values are arrays of objects (null is
// read as an empty array). Empty arrays are dropped.
func Decode(raw []byte) (Data, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top level is not a JSON object", ErrInvalidPayload)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	out := make(Data, len(top))
	for k, v := range top {
		key, err := model.ParseDateKey(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		list, err := decodeList(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, k, err)
		}
		if len(list) > 0 {
			out[key] = list
		}
	}
	return out, nil
}

func decodeList(v json.RawMessage) ([]model.UserEvent, error) {
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return nil, nil
	}
	if len(v) == 0 || v[0] != '[' {
		return nil, errors.New("value is not an array")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, err
	}
	list := make([]model.UserEvent, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, fmt.Errorf("item %d is not an object", i)
		}
		var ev model.UserEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			return nil, fmt.Errorf("item %d: %v", i, err)
		}
		list = append(list, ev)
	}
	return list, nil
}

// Encode marshals d. pretty uses two-space indentation, the export format.
func Encode(d Data, pretty bool) ([]byte, error) {
	if d == nil {
		d = Data{}
	}
	if pretty {
		return json.MarshalIndent(d, "", "  ")
	}
	return json.Marshal(d)
}

// EncodeShare returns the share-link payload: the UTF-8 JSON of d in
// standard base64 without line wraps.
func EncodeShare(d Data) (string, error) {
	raw, err := Encode(d, false)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeShare reverses EncodeShare. It tolerates a '+' turned into a space
// by form decoding and missing padding.
func DecodeShare(s string) (Data, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "+")
	if s == "" {
		return nil, fmt.Errorf("%w: empty share payload", ErrInvalidPayload)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return Decode(raw)
}

// Import reads a JSON export from r and replaces the store with it. On any
// error the store is left untouched.
func (s *Store) Import(r io.Reader, limit int64) error {
	if limit <= 0 {
		limit = DefaultImportLimit
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		s.rec.RecordImport("file", false)
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if int64(len(raw)) > limit {
		s.rec.RecordImport("file", false)
		return fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidPayload, limit)
	}
	d, err := Decode(raw)
	if err != nil {
		s.rec.RecordImport("file", false)
		appLog.Warn("import rejected", "err", err)
		return err
	}
	s.ReplaceAll(d)
	s.rec.RecordImport("file", true)
	appLog.Info("events imported", "dates", len(d))
	return nil
}

// LoadShare replaces the store with a share-link payload and saves it. An
// invalid payload leaves the store untouched.
func (s *Store) LoadShare(payload string) error {
	d, err := DecodeShare(payload)
	if err != nil {
		s.rec.RecordImport("share", false)
		appLog.Warn("share payload rejected", "err", err)
		return err
	}
	s.ReplaceAll(d)
	s.rec.RecordImport("share", true)
	appLog.Info("events loaded from share link", "dates", len(d))
	return nil
}

// Share returns the share payload for the current contents.
func (s *Store) Share() (string, error) {
	return EncodeShare(s.Serialize())
}

// Export writes the pretty JSON export of the current contents to w.
func (s *Store) Export(w io.Writer) error {
	raw, err := Encode(s.Serialize(), true)
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// ExportFilename is the download name for an export taken at now.
func ExportFilename(now time.Time) string {
	return "family-calendar-" + now.Format(model.DateKeyLayout) + ".json"
}
