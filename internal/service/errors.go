package service

type ErrorCode string

const (
	ErrorCodeValidation  ErrorCode = "VALIDATION"
	ErrorCodeInvalidBody ErrorCode = "INVALID_BODY"
	ErrorCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrorCodeForbidden   ErrorCode = "FORBIDDEN"
	ErrorCodeConflict    ErrorCode = "CONFLICT"
	ErrorCodeUnspecified ErrorCode = "UNSPECIFIED"

	ErrorCodeTeamExists            ErrorCode = "TEAM_EXISTS"
	ErrorCodeTeamFull              ErrorCode = "TEAM_FULL"
	ErrorCodeAlreadyInTeam         ErrorCode = "ALREADY_IN_TEAM"
	ErrorCodeNotATeamMember        ErrorCode = "NOT_A_TEAM_MEMBER"
	ErrorCodeCannotRemoveSelf      ErrorCode = "CANNOT_REMOVE_SELF"
	ErrorCodeInvalidTransferTarget ErrorCode = "INVALID_TRANSFER_TARGET"

	ErrorCodeStatementFull            ErrorCode = "STATEMENT_FULL"
	ErrorCodeDuplicateCustomStatement ErrorCode = "DUPLICATE_CUSTOM_STATEMENT"

	ErrorCodeDuplicateVote ErrorCode = "DUPLICATE_VOTE"
	ErrorCodeSelfVote      ErrorCode = "SELF_VOTE"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}
