package sharing

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/jwt"
)

var errInvalidRequest = errors.New("invalid request", errors.BadRequest())

// HTTPServer defines the interface to register the http handlers.
type HTTPServer interface {
	RegisterHandler(path, method string, f http.Handler)
}

// encodeError writes an error as an HTTP response. It handles the status code
// contained in the error.
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	statusCode := http.StatusInternalServerError
	if jwt.IsTokenError(err) {
		statusCode = http.StatusUnauthorized
	} else if err, ok := err.(errors.Error); ok {
		statusCode = err.Code()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

// callerMiddleware rejects the tokens that identify no caller. When
// servicesOnly is set, tokens issued to users are rejected as well.
func callerMiddleware(servicesOnly bool) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, r interface{}) (interface{}, error) {
			claims, err := jwt.FromContext(ctx)
			if err != nil {
				return nil, err
			}

			if claims.Service == "" {
				if servicesOnly {
					return nil, errors.New("only services can call this endpoint", errors.Forbidden())
				} else if claims.UserID <= 0 {
					return nil, errors.New("token identifies no caller", errors.Forbidden())
				}
			}
			return next(ctx, r)
		}
	}
}

func (s *Service) RegisterHTTP(srv HTTPServer, jwtKey []byte) {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
		kithttp.ServerBefore(kitjwt.HTTPToContext()),
	}
	authenticationMiddleware := jwt.Middleware(jwtKey)
	servicesOnly := endpoint.Chain(authenticationMiddleware, callerMiddleware(true))
	anyCaller := endpoint.Chain(authenticationMiddleware, callerMiddleware(false))

	eventHandler := kithttp.NewServer(
		servicesOnly(makeEventEndpoint(s)),
		decodeEventRequest,
		kithttp.EncodeJSONResponse,
		opts...,
	)

	syncHandler := kithttp.NewServer(
		anyCaller(makeSyncEndpoint(s)),
		decodeSyncRequest,
		kithttp.EncodeJSONResponse,
		opts...,
	)

	shareHandler := kithttp.NewServer(
		servicesOnly(makeShareEndpoint(s)),
		decodeShareRequest,
		kithttp.EncodeJSONResponse,
		opts...,
	)

	linkHandler := kithttp.NewServer(
		anyCaller(makeLinkEndpoint(s)),
		decodeLinkRequest,
		kithttp.EncodeJSONResponse,
		opts...,
	)

	permissionsHandler := kithttp.NewServer(
		anyCaller(makePermissionsEndpoint(s)),
		decodePermissionsRequest,
		kithttp.EncodeJSONResponse,
		opts...,
	)

	srv.RegisterHandler("/sharing/v1/events", "POST", eventHandler)
	srv.RegisterHandler("/sharing/v1/sync", "POST", syncHandler)
	srv.RegisterHandler("/sharing/v1/share", "POST", shareHandler)
	srv.RegisterHandler("/sharing/v1/links", "GET", linkHandler)
	srv.RegisterHandler("/sharing/v1/permissions", "GET", permissionsHandler)
}

func makeEventEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, r interface{}) (interface{}, error) {
		e, ok := r.(Event)
		if !ok {
			return nil, errInvalidRequest
		}

		e, err := e.Normalize()
		if err != nil {
			return nil, err
		}

		return map[string]interface{}{
			"data": s.OnEvent(ctx, e),
		}, nil
	}
}

func decodeEventRequest(_ context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	var e Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		return nil, errors.New("could not decode event", errors.WithCause(err), errors.BadRequest())
	}
	return e, nil
}

type syncRequest struct {
	courseID int
}

func makeSyncEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, r interface{}) (interface{}, error) {
		req, ok := r.(syncRequest)
		if !ok {
			return nil, errInvalidRequest
		}

		claims, err := jwt.FromContext(ctx)
		if err != nil {
			return nil, err
		}
		s.logger.WithFields(map[string]interface{}{
			"caller": claims.Service,
			"user":   claims.UserID,
		}).Printf("sync of course %d requested", req.courseID)

		if req.courseID == 0 {
			report, err := s.SyncAll(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"data": report}, nil
		}

		return map[string]interface{}{
			"data": s.SyncCourse(ctx, req.courseID),
		}, nil
	}
}

func decodeSyncRequest(_ context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	courseID, err := intParam(r, "course")
	if err != nil {
		return nil, err
	}
	return syncRequest{courseID: courseID}, nil
}

func makeShareEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, r interface{}) (interface{}, error) {
		req, ok := r.(ShareRequest)
		if !ok {
			return nil, errInvalidRequest
		}

		claims, err := jwt.FromContext(ctx)
		if err != nil {
			return nil, err
		}
		s.logger.WithField("caller", claims.Service).Printf("%s of user %d on %s requested", req.Action, req.UserID, req.FileID)

		res, err := s.Share(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"data": res}, nil
	}
}

func decodeShareRequest(_ context.Context, r *http.Request) (interface{}, error) {
	defer r.Body.Close()

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("could not decode share request", errors.WithCause(err), errors.BadRequest())
	}
	return req, nil
}

func makeLinkEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, r interface{}) (interface{}, error) {
		moduleID, ok := r.(int)
		if !ok {
			return nil, errInvalidRequest
		}

		link, err := s.Link(ctx, moduleID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"data": link}, nil
	}
}

func decodeLinkRequest(_ context.Context, r *http.Request) (interface{}, error) {
	moduleID, err := intParam(r, "module")
	if err != nil {
		return nil, err
	} else if moduleID <= 0 {
		return nil, errors.New("missing module parameter", errors.BadRequest())
	}
	return moduleID, nil
}

func makePermissionsEndpoint(s *Service) endpoint.Endpoint {
	return func(ctx context.Context, r interface{}) (interface{}, error) {
		fileID, ok := r.(string)
		if !ok {
			return nil, errInvalidRequest
		}

		perms, err := s.Permissions(ctx, fileID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"data": perms}, nil
	}
}

func decodePermissionsRequest(_ context.Context, r *http.Request) (interface{}, error) {
	fileID := r.URL.Query().Get("file")
	if fileID == "" {
		return nil, errors.New("missing file parameter", errors.BadRequest())
	}
	return fileID, nil
}

func intParam(r *http.Request, name string) (int, error) {
	str := r.URL.Query().Get(name)
	if str == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, errors.New("error reading "+name+" parameter", errors.WithCause(err), errors.BadRequest())
	}
	return v, nil
}
