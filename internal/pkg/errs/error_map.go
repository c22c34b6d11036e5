package errs

import "net/http"

// errorMap registers the message template and HTTP status for every code.
var errorMap = map[int]CustomError{
	// 1xxx: request handling
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: rooms, messages, content safety
	ErrRoomIDInvalid:           {Code: ErrRoomIDInvalid, Message: "Invalid chat room."},
	ErrMessageContentTooLong:   {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageKindInvalid:      {Code: ErrMessageKindInvalid, Message: "Unsupported message type."},
	ErrNotFriends:              {Code: ErrNotFriends, Message: "You can only message users on your contact list."},
	ErrMessageStoreUnavailable: {Code: ErrMessageStoreUnavailable, Message: "Message could not be saved. Please try again.", Status: http.StatusServiceUnavailable},
	ErrFileSizeTooLarge:        {Code: ErrFileSizeTooLarge, Message: "File is too large."},
	ErrFileTypeInvalid:         {Code: ErrFileTypeInvalid, Message: "File type is not allowed."},
	ErrFileStorageFailed:       {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again."},
	ErrFileNotFound:            {Code: ErrFileNotFound, Message: "File not found.", Status: http.StatusNotFound},

	// 3xxx: sessions and security
	ErrUnauthorized:     {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSessionKicked:    {Code: ErrSessionKicked, Message: "Your session was ended by the server."},
	ErrDuplicateSession: {Code: ErrDuplicateSession, Message: "This account is already online elsewhere."},
	ErrAlreadyLoggedIn:  {Code: ErrAlreadyLoggedIn, Message: "You are already signed in."},

	// 4xxx: authentication and the login throttle
	ErrInvalidUsername:      {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrInvalidPassword:      {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrUserAlreadyExists:    {Code: ErrUserAlreadyExists, Message: "Username is already taken."},
	ErrInvalidCredentials:   {Code: ErrInvalidCredentials, Message: "Incorrect username or password."},
	ErrCredentialsRemaining: {Code: ErrCredentialsRemaining, Message: "Incorrect username or password. %d attempt(s) remaining before the account is frozen."},
	ErrAccountFrozen:        {Code: ErrAccountFrozen, Message: "This account has been frozen. Contact support to restore access.", Status: http.StatusForbidden},
	ErrUserNotFound:         {Code: ErrUserNotFound, Message: "Account not found."},
	ErrOldPasswordInvalid:   {Code: ErrOldPasswordInvalid, Message: "Current password is incorrect."},

	// 5xxx: internal
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
