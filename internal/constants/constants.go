package constants

const (
	// IDRandomBytes is the number of random bytes behind every prefixed ID.
	IDRandomBytes = 12

	WSClientSendBufferSize = 64

	// MessageContentMaxLength is the chat message limit in characters.
	MessageContentMaxLength = 4000

	FeaturedCourseLimit = 8
	MaxCourseVideos     = 10
)

const (
	// Shared REST/WS transport-agnostic errors
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeInternal        = "INTERNAL_ERROR"

	// Chat domain errors
	ErrCodeMessageTooLong = "MESSAGE_TOO_LONG"
)
