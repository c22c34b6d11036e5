package errs

// 1xxx: request handling
const (
	// ErrInvalidParams indicates request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unsupported Content-Type header.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed JSON request body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after the JSON body.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates the request body exceeded the limit.
	ErrRequestEntityTooLarge = 1005

	// ErrRateLimitExceeded indicates the per-IP rate limit was hit.
	ErrRateLimitExceeded = 1006
)

// 2xxx: rooms, messages, and content safety
const (
	// ErrRoomIDInvalid indicates a malformed or empty room identifier.
	ErrRoomIDInvalid = 2101

	// ErrMessageContentTooLong indicates the message body exceeded the limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageKindInvalid indicates an unrecognized message kind.
	ErrMessageKindInvalid = 2202

	// ErrNotFriends indicates a direct message between users with no friend
	// relation in either direction and no staff participant.
	ErrNotFriends = 2301

	// ErrMessageStoreUnavailable indicates the message store could not be
	// reached; nothing was persisted and nothing was delivered.
	ErrMessageStoreUnavailable = 2302

	// ErrFileSizeTooLarge indicates an attachment exceeded the size limit.
	ErrFileSizeTooLarge = 2401

	// ErrFileTypeInvalid indicates a disallowed attachment type.
	ErrFileTypeInvalid = 2402

	// ErrFileStorageFailed indicates object storage refused the operation.
	ErrFileStorageFailed = 2403

	// ErrFileNotFound indicates the requested object does not exist.
	ErrFileNotFound = 2404
)

// 3xxx: sessions and security
const (
	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3001

	// ErrSessionKicked indicates the server ended the WebSocket session.
	ErrSessionKicked = 3002

	// ErrDuplicateSession indicates the user already holds a live session.
	ErrDuplicateSession = 3003

	// ErrAlreadyLoggedIn indicates an authenticated caller hit a guest-only endpoint.
	ErrAlreadyLoggedIn = 3004
)

// 4xxx: authentication and the login throttle
const (
	// ErrInvalidUsername indicates a username failing the format rules.
	ErrInvalidUsername = 4001

	// ErrInvalidPassword indicates a password failing the length rules.
	ErrInvalidPassword = 4002

	// ErrUserAlreadyExists indicates a registration conflict.
	ErrUserAlreadyExists = 4003

	// ErrInvalidCredentials indicates a bad username/password pair.
	ErrInvalidCredentials = 4004

	// ErrCredentialsRemaining is ErrInvalidCredentials with the number of
	// attempts left before the account is frozen.
	ErrCredentialsRemaining = 4005

	// ErrAccountFrozen indicates the account is frozen; authentication is
	// refused regardless of credential correctness.
	ErrAccountFrozen = 4006

	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = 4007

	// ErrOldPasswordInvalid indicates the current password check failed.
	ErrOldPasswordInvalid = 4008
)

// 5xxx: internal
const (
	// ErrUnknown is the catch-all internal error.
	ErrUnknown = 5000
)
