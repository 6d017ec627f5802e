package modem

import (
	"errors"
	"strings"

	"i4.energy/across/smsbridge/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	//
	// This can occur if initialization failed or if the Modem was not created
	// via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrSIMPinRequired is returned when the SIM card requires a PIN and no
	// PIN was provided in the Config.
	//
	// Callers may handle this error specially (for example, by prompting
	// the user for a PIN) and retry initialization.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrLoopRunning is returned when Loop is called while another Loop is
	// already serving the same Modem.
	ErrLoopRunning = errors.New("modem loop already running")

	// ErrNoPrompt is returned when the modem answers AT+CMGS without the
	// "> " input prompt.
	ErrNoPrompt = errors.New("no SMS input prompt")
)

// CMSError is a message service failure ("+CMS ERROR: ...") reported by
// the modem. Code is zero when the modem reported the failure as text.
type CMSError struct {
	Code int
	Line string
}

func (e *CMSError) Error() string {
	return e.Line
}

// NoService reports whether the failure means the radio had no network to
// hand the message to.
func (e *CMSError) NoService() bool {
	switch e.Code {
	case at.CmsNoNetworkService, at.CmsNetworkTimeout:
		return true
	}
	return strings.Contains(strings.ToLower(e.Line), "no network service")
}

// finalError converts a failing final result line into an error.
func finalError(token string) error {
	if strings.HasPrefix(token, at.CmsError) {
		code, _ := at.ParseCMSError(token)
		return &CMSError{Code: code, Line: token}
	}
	return errors.New(token)
}
