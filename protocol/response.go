package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Response is the closed set of envelope variants. Each variant carries a
// fixed, typed field set and is serialized through Encode — there is no
// ad hoc map construction anywhere on the response path.
type Response interface {
	isResponse()
}

// ListResult is the successful LIST response: the stored filenames.
type ListResult struct {
	Names []string
}

// GetResult is the successful GET response: the filename and raw content.
// Encode base64-encodes the content into the data_file field.
type GetResult struct {
	Filename string
	Data     []byte
}

// UploadResult is the successful UPLOAD response carrying the canonical
// content-addressed name the backend stored the file under.
type UploadResult struct {
	StoredName string
}

// DeleteResult is the successful DELETE response.
type DeleteResult struct{}

// ErrorResult is the ERROR envelope with a human-readable message.
type ErrorResult struct {
	Message string
}

func (ListResult) isResponse()   {}
func (GetResult) isResponse()    {}
func (UploadResult) isResponse() {}
func (DeleteResult) isResponse() {}
func (ErrorResult) isResponse()  {}

// Wire shapes. Field names match the original protocol exactly, including
// the data_namafile / data_file spelling on GET.
type listWire struct {
	Status string   `json:"status"`
	Data   []string `json:"data"`
}

type getWire struct {
	Status   string `json:"status"`
	Filename string `json:"data_namafile"`
	File     string `json:"data_file"`
}

type uploadWire struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    uploadWireData `json:"data"`
}

type uploadWireData struct {
	FilePath string `json:"file_path"`
}

type deleteWire struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorWire struct {
	Status string `json:"status"`
	Data   string `json:"data"`
}

// RemoteError is an ERROR envelope surfaced on the client side.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "server: " + e.Message
}

// checkStatus decodes the shared status/data fields and converts an ERROR
// envelope into a RemoteError.
func checkStatus(payload []byte) error {
	// The data field's type varies per operation, so status is probed alone.
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return fmt.Errorf("malformed envelope: %w", err)
	}
	switch probe.Status {
	case StatusOK:
		return nil
	case StatusError:
		var wire errorWire
		if err := json.Unmarshal(payload, &wire); err != nil {
			return fmt.Errorf("malformed ERROR envelope: %w", err)
		}
		return &RemoteError{Message: wire.Data}
	default:
		return fmt.Errorf("unknown envelope status %q", probe.Status)
	}
}

// DecodeList unpacks a LIST envelope.
func DecodeList(payload []byte) ([]string, error) {
	if err := checkStatus(payload); err != nil {
		return nil, err
	}
	var wire listWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("malformed LIST envelope: %w", err)
	}
	return wire.Data, nil
}

// DecodeGet unpacks a GET envelope, reversing the base64 content encoding.
func DecodeGet(payload []byte) (string, []byte, error) {
	if err := checkStatus(payload); err != nil {
		return "", nil, err
	}
	var wire getWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return "", nil, fmt.Errorf("malformed GET envelope: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(wire.File)
	if err != nil {
		return "", nil, fmt.Errorf("malformed GET content: %w", err)
	}
	return wire.Filename, data, nil
}

// DecodeUpload unpacks an UPLOAD envelope and returns the stored name.
func DecodeUpload(payload []byte) (string, error) {
	if err := checkStatus(payload); err != nil {
		return "", err
	}
	var wire uploadWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return "", fmt.Errorf("malformed UPLOAD envelope: %w", err)
	}
	return wire.Data.FilePath, nil
}

// DecodeDelete unpacks a DELETE envelope.
func DecodeDelete(payload []byte) error {
	return checkStatus(payload)
}

// Encode renders a response as its canonical JSON envelope. It does not
// append ResponseTerminator — transport framing belongs to the sender, which
// keeps the encoder reusable for the command and upload-completion paths.
func Encode(r Response) ([]byte, error) {
	switch v := r.(type) {
	case ListResult:
		names := v.Names
		if names == nil {
			// An empty store must serialize as [], not null.
			names = []string{}
		}
		return json.Marshal(listWire{Status: StatusOK, Data: names})

	case GetResult:
		return json.Marshal(getWire{
			Status:   StatusOK,
			Filename: v.Filename,
			File:     base64.StdEncoding.EncodeToString(v.Data),
		})

	case UploadResult:
		return json.Marshal(uploadWire{
			Status:  StatusOK,
			Message: "File uploaded successfully",
			Data:    uploadWireData{FilePath: v.StoredName},
		})

	case DeleteResult:
		return json.Marshal(deleteWire{
			Status:  StatusOK,
			Message: "File deleted successfully",
		})

	case ErrorResult:
		return json.Marshal(errorWire{Status: StatusError, Data: v.Message})

	default:
		return nil, fmt.Errorf("unknown response variant %T", r)
	}
}
