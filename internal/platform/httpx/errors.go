// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/planora-app/planora/internal/shared"
)

var statusByCode = map[shared.Code]int{
	shared.CodeValidation:         http.StatusBadRequest,
	shared.CodeInvalidState:       http.StatusBadRequest,
	shared.CodeFteInvalid:         http.StatusBadRequest,
	shared.CodeDemandXOR:          http.StatusBadRequest,
	shared.CodePlaceholderBlocked: http.StatusBadRequest,
	shared.CodeActualsOver100:     http.StatusBadRequest,
	shared.CodeAlreadySigned:      http.StatusBadRequest,
	shared.CodeNotCurrentStep:     http.StatusBadRequest,
	shared.CodeInstanceTerminal:   http.StatusBadRequest,
	shared.CodePeriodLocked:       http.StatusForbidden,
	shared.CodeUnauthorizedRole:   http.StatusForbidden,
	shared.CodeNotFound:           http.StatusNotFound,
	shared.CodeConflict:           http.StatusConflict,
}

var titleByCode = map[shared.Code]string{
	shared.CodeValidation:         "Validation Error",
	shared.CodeInvalidState:       "Invalid State",
	shared.CodeFteInvalid:         "Invalid FTE",
	shared.CodeDemandXOR:          "Invalid Demand Assignment",
	shared.CodePlaceholderBlocked: "Placeholder Blocked",
	shared.CodeActualsOver100:     "Actuals Over Limit",
	shared.CodeAlreadySigned:      "Already Signed",
	shared.CodeNotCurrentStep:     "Not Current Step",
	shared.CodeInstanceTerminal:   "Instance Terminal",
	shared.CodePeriodLocked:       "Period Locked",
	shared.CodeUnauthorizedRole:   "Forbidden",
	shared.CodeNotFound:           "Not Found",
	shared.CodeConflict:           "Conflict",
}

// RespondError maps a domain error to an RFC7807 response. Errors outside
// the taxonomy become opaque 500s; the caller is expected to log them.
func RespondError(w http.ResponseWriter, err error) {
	de, ok := shared.AsDomainError(err)
	if !ok {
		Problem(w, ProblemDetail{
			Title:  "Internal Error",
			Status: http.StatusInternalServerError,
			Code:   "INTERNAL",
		})
		return
	}
	status, known := statusByCode[de.Code]
	if !known {
		status = http.StatusInternalServerError
	}
	Problem(w, ProblemDetail{
		Title:  titleByCode[de.Code],
		Status: status,
		Detail: de.Message,
		Code:   string(de.Code),
		Extra:  de.Extra,
	})
}

// ValidationProblem reports request decoding/validation failures field by
// field.
func ValidationProblem(w http.ResponseWriter, detail string, fields []ProblemField) {
	Problem(w, ProblemDetail{
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: detail,
		Code:   string(shared.CodeValidation),
		Errors: fields,
	})
}
