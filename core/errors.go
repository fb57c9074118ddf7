package core

// Error is a constant error value reported by the burst generator.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrSequenceTooLong = Error("burst sequence exceeds buffer capacity")
	ErrZeroPulses      = Error("burst pulse count must be at least 1")
	ErrGeneratorBusy   = Error("burst generator is running")
	ErrShutdown        = Error("firmware is shut down")
	ErrBadBurstData    = Error("malformed burst data")
)

// Error codes carried by the burst_error response. Zero means no error.
const (
	CodeOK uint8 = iota
	CodeSequenceTooLong
	CodeZeroPulses
	CodeGeneratorBusy
	CodeShutdown
	CodeBadBurstData
)

var codeErrors = [...]Error{
	CodeSequenceTooLong: ErrSequenceTooLong,
	CodeZeroPulses:      ErrZeroPulses,
	CodeGeneratorBusy:   ErrGeneratorBusy,
	CodeShutdown:        ErrShutdown,
	CodeBadBurstData:    ErrBadBurstData,
}

// ErrorCode maps an error to its wire code. Unknown errors map to
// CodeBadBurstData.
func ErrorCode(err error) uint8 {
	if err == nil {
		return CodeOK
	}
	for code, e := range codeErrors {
		if e != "" && err == error(e) {
			return uint8(code)
		}
	}
	return CodeBadBurstData
}

// ErrorFromCode maps a wire code back to its error.
func ErrorFromCode(code uint8) error {
	if code == CodeOK {
		return nil
	}
	if int(code) < len(codeErrors) {
		return codeErrors[code]
	}
	return Error("unknown error code " + utoa(uint32(code)))
}
