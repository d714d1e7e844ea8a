package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/zephyrtronium/pipes"
)

var logger *logrus.Entry

type ctxkey int

const keyReqID ctxkey = iota

func init() {
	logger = logrus.WithField("package", "main")
}

// maxPrec bounds the precision a request may ask for, so a single request
// can't make the server compute million-bit constants.
const maxPrec = 4096

// Server is a net/http.Server that evaluates pipe chains.
type Server struct {
	// prec is the precision used when a request doesn't set one.
	prec uint

	*http.Server
}

// NewServer returns a Server listening on addr, evaluating with precision
// prec by default.
func NewServer(addr string, prec uint) *Server {
	srv := &Server{
		Server: &http.Server{
			Addr: addr,
		},

		prec: prec,
	}

	r := mux.NewRouter()
	srv.Handler = r

	r.Handle("/", chain(getRoot, setRequestID, logRequest)).
		Methods(http.MethodGet)

	r.Handle("/eval", chain(srv.handleEval, setRequestID, logRequest)).
		Methods(http.MethodPost)

	r.Handle("/funcs", chain(getFuncs, setRequestID, logRequest)).
		Methods(http.MethodGet)

	return srv
}

// middleware is a function that can intercept the handling of an HTTP request
// to do something useful.
type middleware func(http.HandlerFunc) http.HandlerFunc

// chain builds the final http.Handler from all the middlewares passed to it.
func chain(f http.HandlerFunc, mw ...middleware) http.Handler {
	// Because function calls are placed on a stack, they need to
	// be applied in reverse order from what they are passed in,
	// in order for calls to chain() to be intuitive.
	for i := len(mw) - 1; i >= 0; i-- {
		f = mw[i](f)
	}

	return f
}

// setRequestID sets a UUID on the request so that it can be tracked through
// logs.
func setRequestID(f http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		id := uuid.New().String()

		ctx := context.WithValue(req.Context(), keyReqID, id)
		logger.WithField("request_id", id).
			Debug("setting request ID")

		f(rw, req.WithContext(ctx))
	}
}

// logRequest logs useful information about the request. It must have a
// "request_id" set on the request context.
func logRequest(f http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		reqid := req.Context().Value(keyReqID).(string)

		logger := logger.WithField("request_id", reqid)

		logger.Infof("%v %v", req.Method, req.URL)

		f(rw, req)
	}
}

type evalRequest struct {
	Chain string            `json:"chain"`
	Vars  map[string]string `json:"vars"`
	Prec  uint              `json:"prec"`
}

type evalResponse struct {
	Result string   `json:"result"`
	Chain  string   `json:"chain"`
	Vars   []string `json:"vars,omitempty"`
}

type errResponse struct {
	Error string `json:"error"`
}

func getRoot(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, map[string]string{"status": "ok"}, http.StatusOK)
}

func getFuncs(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, map[string][]string{"funcs": pipes.FuncNames()}, http.StatusOK)
}

func (srv *Server) handleEval(rw http.ResponseWriter, req *http.Request) {
	reqID := req.Context().Value(keyReqID).(string)
	logger := logger.WithField("request_id", reqID)

	var ev evalRequest
	if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
		logger.WithError(err).Error("unable to decode request body")

		writeErrResp(rw, err, http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	if ev.Chain == "" {
		err := errors.New("missing field 'chain' from request")
		logger.WithError(err).Error("unable to complete request")

		writeErrResp(rw, err, http.StatusBadRequest)
		return
	}

	prec := ev.Prec
	if prec == 0 {
		prec = srv.prec
	}
	if prec > maxPrec {
		err := fmt.Errorf("precision %d over limit %d", prec, maxPrec)
		logger.WithError(err).Error("unable to complete request")

		writeErrResp(rw, err, http.StatusBadRequest)
		return
	}

	logger = logger.WithField("chain", ev.Chain)

	logger.Debug("parsing chain")

	c, err := pipes.Parse(strings.NewReader(ev.Chain))
	if err != nil {
		logger.WithError(err).Error("unable to parse chain")

		writeErrResp(rw, err, http.StatusBadRequest)
		return
	}

	ctx := pipes.NewContext(pipes.Prec(prec))
	for name, val := range ev.Vars {
		r, err := pipes.EvalString(val, pipes.Prec(prec))
		if err != nil {
			logger.WithError(err).Errorf("unable to set variable %q", name)

			writeErrResp(rw, err, http.StatusBadRequest)
			return
		}
		ctx.Set(name, r)
	}

	logger.Debug("evaluating chain")

	r := ctx.Eval(c)
	if r == nil {
		logger.WithError(ctx.Err()).Error("unable to evaluate chain")

		writeErrResp(rw, ctx.Err(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(rw, evalResponse{
		Result: fmt.Sprintf("%g", r),
		Chain:  c.String(),
		Vars:   c.Vars(),
	}, http.StatusOK)
}

func writeErrResp(rw http.ResponseWriter, err error, status int) {
	writeJSON(rw, errResponse{Error: err.Error()}, status)
}

func writeJSON(rw http.ResponseWriter, v interface{}, status int) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logger.WithError(err).Error("unable to write response body")
	}
}
