package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/xeipuuv/gojsonschema"

	apierrors "github.com/capsoftware/cap-media-server/errors"
)

// Request body schemas, per spec §6's endpoint table. Compiled once at
// package init, grounded on handlers/json_schema.go's compile-on-start
// pattern (panic on a malformed schema is a programmer error, not a runtime
// one).
const (
	audioCheckSchema = `{
		"type": "object",
		"properties": { "videoUrl": { "type": "string", "minLength": 1 } },
		"required": ["videoUrl"]
	}`

	audioExtractSchema = `{
		"type": "object",
		"properties": {
			"videoUrl": { "type": "string", "minLength": 1 },
			"stream": { "type": "boolean" }
		},
		"required": ["videoUrl"]
	}`

	videoProbeSchema = `{
		"type": "object",
		"properties": { "videoUrl": { "type": "string", "minLength": 1 } },
		"required": ["videoUrl"]
	}`

	videoThumbnailSchema = `{
		"type": "object",
		"properties": {
			"videoUrl": { "type": "string", "minLength": 1 },
			"timestamp": { "type": "number", "minimum": 0 },
			"width": { "type": "integer", "minimum": 1, "maximum": 2000 },
			"height": { "type": "integer", "minimum": 1, "maximum": 2000 },
			"quality": { "type": "integer", "minimum": 1, "maximum": 100 }
		},
		"required": ["videoUrl"]
	}`

	videoProcessSchema = `{
		"type": "object",
		"properties": {
			"videoId": { "type": "string", "minLength": 1 },
			"userId": { "type": "string", "minLength": 1 },
			"videoUrl": { "type": "string", "minLength": 1 },
			"outputPresignedUrl": { "type": "string", "minLength": 1 },
			"thumbnailPresignedUrl": { "type": "string" },
			"webhookUrl": { "type": "string" },
			"maxWidth": { "type": "integer", "minimum": 1, "maximum": 4096 },
			"maxHeight": { "type": "integer", "minimum": 1, "maximum": 4096 },
			"crf": { "type": "integer", "minimum": 0, "maximum": 51 },
			"preset": { "type": "string", "enum": ["ultrafast", "fast", "medium", "slow"] },
			"remuxOnly": { "type": "boolean" }
		},
		"required": ["videoId", "userId", "videoUrl", "outputPresignedUrl"]
	}`

	videoEditorProcessSchema = `{
		"type": "object",
		"properties": {
			"videoId": { "type": "string", "minLength": 1 },
			"userId": { "type": "string", "minLength": 1 },
			"videoUrl": { "type": "string", "minLength": 1 },
			"outputPresignedUrl": { "type": "string", "minLength": 1 },
			"webhookUrl": { "type": "string" },
			"projectConfig": { "type": "object" }
		},
		"required": ["videoId", "userId", "videoUrl", "outputPresignedUrl", "projectConfig"]
	}`
)

var compiledSchemas = compileSchemas(map[string]string{
	"audioCheck":         audioCheckSchema,
	"audioExtract":       audioExtractSchema,
	"videoProbe":         videoProbeSchema,
	"videoThumbnail":     videoThumbnailSchema,
	"videoProcess":       videoProcessSchema,
	"videoEditorProcess": videoEditorProcessSchema,
})

func compileSchemas(raw map[string]string) map[string]*gojsonschema.Schema {
	out := make(map[string]*gojsonschema.Schema, len(raw))
	for name, text := range raw {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			panic(err) // fix schema text
		}
		out[name] = schema
	}
	return out
}

// decodeAndValidate reads req's body, validates it against the named
// schema, and unmarshals it into dst. On any failure it writes the HTTP
// error itself and returns false.
func decodeAndValidate(w http.ResponseWriter, requestID, schemaName string, req *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindInvalidRequest, "failed to read request body", err))
		return false
	}

	schema := compiledSchemas[schemaName]
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindInvalidRequest, "failed to validate request body", err))
		return false
	}
	if !result.Valid() {
		apierrors.WriteHTTPBadBodySchema(w, requestID, schemaName, result.Errors())
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		apierrors.WriteHTTP(w, requestID, apierrors.Wrap(apierrors.KindInvalidRequest, "failed to parse request body", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
