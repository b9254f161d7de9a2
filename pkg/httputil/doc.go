// Package httputil carries the JSON plumbing shared by the loom API
// handlers: a single error envelope, body decoding, route-variable
// extraction, and the generic outer middleware.
//
// # Responses
//
// Every endpoint answers JSON; errors use one envelope shape:
//
//	httputil.WriteJSONOrError(w, http.StatusOK, resp, "failed to encode permissions")
//	httputil.WriteBadRequest(w, "Invalid request parameters")
//	httputil.WriteForbidden(w, "Insufficient permissions")
//	httputil.WriteNoContent(w)
//
// # Requests
//
//	var req CheckPermissionRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	workspaceID, ok := httputil.ParsePathStringOrError(w, r, "workspaceID")
//
// # Middleware
//
// Generic outer-layer middleware only; request identity, recovery, and
// authorization live in pkg/middleware:
//
//	httputil.Chain(
//		httputil.CORSMiddleware(origins),
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//		httputil.TimeoutMiddleware(25*time.Second),
//	)
package httputil
