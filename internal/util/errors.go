package util

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserDisabled     = errors.New("account is disabled")
	ErrEmailRegistered  = errors.New("email already registered")
	ErrPermissionDenied = errors.New("permission denied")

	ErrTestNotFound     = errors.New("test not found")
	ErrTestNotAvailable = errors.New("test not available")
	ErrTestTitleTaken   = errors.New("a test with this title already exists")
	ErrTestFull         = errors.New("test has reached its maximum number of users")
	ErrQuestionNotFound = errors.New("question not found")
	ErrResultNotFound   = errors.New("result not found")

	ErrInvalidAnswer      = errors.New("invalid answer")
	ErrChoiceOutOfRange   = errors.New("choice index out of range")
	ErrVoteContention     = errors.New("vote count update lost to concurrent writers")
	ErrNoQuestions        = errors.New("test has no questions")
	ErrResultNotSaved     = errors.New("result could not be saved")
	ErrInvalidAccessLimit = errors.New("limited access requires maxUsers >= 1")
	ErrUnsupportedImport  = errors.New("unsupported import file type")
	ErrInvalidFileType    = errors.New("invalid file type")
)
