package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"studentcenter/internal/adapters/http/middleware"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/chat"
	"studentcenter/internal/domain/competition"
	"studentcenter/internal/domain/feature"
	"studentcenter/internal/domain/finance"
	"studentcenter/internal/domain/forum"
	"studentcenter/internal/domain/notification"
	"studentcenter/internal/domain/organization"
	"studentcenter/internal/domain/post"
	"studentcenter/internal/domain/profile"
	"studentcenter/internal/domain/survey"
	"studentcenter/internal/domain/workshop"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// validate checks request DTOs; field names in messages follow the json tags.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// errBadRequest marks a malformed or invalid request body.
var errBadRequest = errors.New("bad request")

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeValid decodes the body into v and runs the validate tags.
func decodeValid(r *http.Request, v any) error {
	if err := strictDecode(r, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("%w: invalid %s", errBadRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http_event", "event", "encode_failed", "error", err)
	}
}

// Sentinel errors grouped by the status they map to. Anything not listed is a 500.
var (
	notFoundErrors = []error{
		tree.ErrNotFound, organization.ErrNotFound, profile.ErrNotFound, chat.ErrNotFound,
		finance.ErrNotFound, forum.ErrNotFound, notification.ErrNotFound, post.ErrNotFound,
		survey.ErrNotFound, workshop.ErrNotFound,
	}
	forbiddenErrors = []error{
		feature.ErrPermissionDenied, organization.ErrNotMember, organization.ErrWrongAccessCode, chat.ErrNotAuthor,
	}
	conflictErrors = []error{
		profile.ErrEmailTaken, organization.ErrAlreadyMember, workshop.ErrFull,
		workshop.ErrAlreadyEnrolled, workshop.ErrNotEnrolled, workshop.ErrEnrollmentClosed,
		survey.ErrClosed, survey.ErrAlreadyClosed, chat.ErrThreadClosed, notification.ErrAlreadyRead,
	}
	unauthorizedErrors = []error{
		orchestrators.ErrInvalidCredentials, orchestrators.ErrCurrentPasswordWrong,
	}
	badRequestErrors = []error{
		errBadRequest, paths.ErrInvalidID, tree.ErrInvalidPath,
		feature.ErrUnknownFeature, feature.ErrUnknownRule,
		organization.ErrEmptyName, organization.ErrNameTooLong, organization.ErrInvalidColor,
		organization.ErrNoCourses, organization.ErrInvalidCourse, organization.ErrUnknownCourse,
		organization.ErrAccessCodeShort, organization.ErrCannotChangeOwner,
		organization.ErrCannotRemoveOwner, organization.ErrInvalidTier,
		profile.ErrEmptyEmail, profile.ErrInvalidEmail, profile.ErrEmptyName, profile.ErrNameTooLong,
		profile.ErrInvalidUsername, profile.ErrPasswordTooShort, profile.ErrNoCourse,
		orchestrators.ErrNewPasswordSame, orchestrators.ErrRegionRequired,
		chat.ErrEmptySubject, chat.ErrSubjectLong, chat.ErrEmptyText, chat.ErrTextTooLong,
		competition.ErrEmptyCourse, competition.ErrZeroDelta, competition.ErrDeltaTooLarge,
		competition.ErrTooFewTeams, competition.ErrEmptySportName,
		finance.ErrInvalidType, finance.ErrInvalidAmount, finance.ErrEmptyDescription, finance.ErrDescriptionLong,
		forum.ErrEmptyText, forum.ErrTextTooLong, forum.ErrInvalidReaction,
		post.ErrEmptyTitle, post.ErrTitleLong, post.ErrEmptyBody, post.ErrBodyLong,
		survey.ErrEmptyQuestion, survey.ErrQuestionTooLong, survey.ErrOptionCount, survey.ErrInvalidOption,
		survey.ErrBadOptionText, survey.ErrDeadlinePast,
		workshop.ErrEmptyTitle, workshop.ErrTitleLong, workshop.ErrDescriptionLong,
		workshop.ErrInvalidCapacity, workshop.ErrPastDate,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrators.ErrGenerationFailed):
		return http.StatusBadGateway
	case isAny(err, forbiddenErrors):
		return http.StatusForbidden
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, unauthorizedErrors):
		return http.StatusUnauthorized
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Internal errors are logged and hidden.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		internalError(w, err)
		return
	}
	msg := err.Error()
	if errors.Is(err, feature.ErrPermissionDenied) {
		msg = feature.ErrPermissionDenied.Error()
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// currentUserID returns the authenticated user. Routes behind RequireAuth always have one.
func currentUserID(r *http.Request) string {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	return sess.UserID
}

// queryInt parses a non-negative integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
}
