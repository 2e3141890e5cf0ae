package batchsim

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

const odataJSON = "application/json;odata=minimalmetadata"

func requestID() string {
	return uuid.New().String()
}

// batchErrorBody is the Batch service error envelope.
type batchErrorBody struct {
	Code    string              `json:"code"`
	Message batchErrorMessage   `json:"message"`
	Values  []batch.ErrorDetail `json:"values,omitempty"`
}

type batchErrorMessage struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", odataJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondCreated writes the empty 201 the service returns for add operations.
func respondCreated(w http.ResponseWriter, id string) {
	w.Header().Set("DataServiceId", id)
	w.WriteHeader(http.StatusCreated)
}

func respondBatchError(w http.ResponseWriter, status int, code, message string, values ...batch.ErrorDetail) {
	respondJSON(w, status, batchErrorBody{
		Code:    code,
		Message: batchErrorMessage{Lang: "en-US", Value: message + "\nRequestId:" + w.Header().Get("request-id")},
		Values:  values,
	})
}

// respondBlobError writes a storage error; the SDK reads the code from the header.
func respondBlobError(w http.ResponseWriter, status int, code, message string) {
	body := `<?xml version="1.0" encoding="utf-8"?><Error><Code>` + code + `</Code><Message>` + message + `</Message></Error>`
	w.Header().Set("x-ms-error-code", code)
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write([]byte(body))
}
