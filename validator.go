package realhttp

// ActionKind is the closed set of decisions a Validator may return.
type ActionKind int

const (
	ActionNextValidator ActionKind = iota
	ActionNextValidatorWithResponse
	ActionFailChain
	ActionRetry
)

// Action is a Validator's verdict on one Response.
type Action struct {
	kind     ActionKind
	response *Response // for ActionNextValidatorWithResponse
	err      error     // for ActionFailChain
	strategy RetryStrategy // for ActionRetry
}

// NextValidator passes the response unchanged to the next validator (or
// returns it, if this is the last one).
func NextValidator() Action { return Action{kind: ActionNextValidator} }

// NextValidatorWithResponse replaces the response and continues the chain.
func NextValidatorWithResponse(resp *Response) Action {
	return Action{kind: ActionNextValidatorWithResponse, response: resp}
}

// FailChain stops the chain, returning the response with err attached under
// CategoryValidatorFailure.
func FailChain(err error) Action { return Action{kind: ActionFailChain, err: err} }

// Retry triggers strategy if currentRetry < maxRetries, else finalizes with
// CategoryRetryAttemptsReached.
func Retry(strategy RetryStrategy) Action { return Action{kind: ActionRetry, strategy: strategy} }

// Validator inspects a Response (and the Request that produced it) and
// returns an Action. This is modeled as a closed sum type via the Action
// constructors above plus this function type as the extensibility variant
// — there is no separate interface hierarchy to implement.
type Validator func(resp *Response, req *Request) Action

// retriableStatusCodes maps a status code to the retry budget granted to it
// specifically by the default validator: it asks for an immediate retry
// while the request's currentRetry is below that budget (and runValidators
// still caps it at MaxRetries). A status not in this map, or one whose
// budget is used up, falls through to the generic non-2xx failure path
// (FailChain), which ends the chain without a retry.
var retriableStatusCodes = map[int]int{
	504: 0,
}

// DefaultValidator is always present unless explicitly removed from a
// Client's validator list. It treats network errors and
// non-2xx status codes as failures, consults retriableStatusCodes for an
// immediate retry, and treats empty bodies as errors only when
// allowsEmptyResponses is false.
func DefaultValidator(allowsEmptyResponses bool) Validator {
	return func(resp *Response, req *Request) Action {
		if resp.IsError() {
			return NextValidator()
		}

		code := resp.StatusCode.Int()

		if code < 200 || code >= 300 {
			if budget, ok := retriableStatusCodes[code]; ok && req.currentRetry < budget {
				return Retry(RetryImmediate())
			}

			return FailChain(NewHTTPError(code, "non-2xx status"))
		}

		if !allowsEmptyResponses {
			data, err := resp.Data()
			if err == nil && len(data) == 0 {
				return FailChain(NewError(CategoryEmptyResponse, "response body is empty", nil))
			}
		}

		return NextValidator()
	}
}

// validatorChainResult is what runValidators hands back to the engine
// driving retries: either a final response, or a retry decision.
type validatorChainResult struct {
	response    *Response
	retry       bool
	strategy    RetryStrategy
}

// runValidators executes validators in order against resp. Alt-requests
// never recurse into retry — a failing validator on an alt-request simply
// returns the response unchanged, guarding against an infinite-recursion
// hazard.
func runValidators(validators []Validator, resp *Response, req *Request) validatorChainResult {
	current := resp

	for _, v := range validators {
		if v == nil {
			continue
		}

		action := v(current, req)

		switch action.kind {
		case ActionNextValidator:
			continue

		case ActionNextValidatorWithResponse:
			current = action.response

			continue

		case ActionFailChain:
			current.Error = &Error{Category: CategoryValidatorFailure, Message: action.err.Error(), Cause: action.err}

			return validatorChainResult{response: current}

		case ActionRetry:
			if req.isAltRequest {
				return validatorChainResult{response: current}
			}

			if req.currentRetry >= req.MaxRetries {
				current.Error = &Error{Category: CategoryRetryAttemptsReached, Message: "retry attempts exhausted", Cause: currentErrorOf(current)}

				return validatorChainResult{response: current}
			}

			return validatorChainResult{response: current, retry: true, strategy: action.strategy}
		}
	}

	return validatorChainResult{response: current}
}

// currentErrorOf returns resp.Error as a plain error, or nil, used to
// preserve the underlying last-attempt error when retry exhaustion
// finalizes a response.
func currentErrorOf(resp *Response) error {
	if resp.Error == nil {
		return nil
	}

	return resp.Error
}
