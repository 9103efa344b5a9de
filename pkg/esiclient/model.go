package esiclient

import "github.com/evesi/esiclient/pkg/esimodel"

// Re-exported so callers only need to import this package for the common
// case; pkg/esimodel stays the shared, import-cycle-free home for these
// types (pkg/pagination depends on it too).
type (
	Method                 = esimodel.Method
	RequestOptions         = esimodel.RequestOptions
	Response               = esimodel.Response
	TokenProvider          = esimodel.TokenProvider
	TokenFunc              = esimodel.TokenFunc
	ConfigurationError     = esimodel.ConfigurationError
	ConnectionTimeoutError = esimodel.ConnectionTimeoutError
	ResponseFormatError    = esimodel.ResponseFormatError
	HTTPError              = esimodel.HTTPError
	RetryLimitError        = esimodel.RetryLimitError
	PageSplitError         = esimodel.PageSplitError
	PartialPagesError      = esimodel.PartialPagesError
)

const (
	MethodGET     = esimodel.MethodGET
	MethodPOST    = esimodel.MethodPOST
	MethodPUT     = esimodel.MethodPUT
	MethodDELETE  = esimodel.MethodDELETE
	MethodHEAD    = esimodel.MethodHEAD
	MethodOPTIONS = esimodel.MethodOPTIONS
)

var (
	StaticToken       = esimodel.StaticToken
	TokenFromCallable = esimodel.TokenFromCallable

	ErrPageSplit   = esimodel.ErrPageSplit
	ErrRetryLimit  = esimodel.ErrRetryLimit
	ErrConnTimeout = esimodel.ErrConnTimeout
)
