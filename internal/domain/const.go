package domain

// Context keys and headers for the resolved viewer identity. The auth
// collaborator terminates tokens upstream and forwards the identity in a
// header; nothing in this process validates credentials.
const (
	ViewerIdCtxKey = "cc-viewerId"
)

const (
	ViewerIdHeader = "x-viewer-id"
)
