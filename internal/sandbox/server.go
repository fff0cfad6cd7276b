package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/kingrea/rosteradmin/internal/logbook"
)

// SessionCookie names the cookie carrying the session token.
const SessionCookie = "session"

const (
	roleAdmin    = "admin"
	roleEmployee = "employee"
)

type session struct {
	empID int64
	role  string
}

// Server serves the admin API over a Store.
type Server struct {
	settings Settings
	store    *Store
	log      *logbook.Logbook
	clock    func() time.Time

	mu      sync.Mutex
	http    *http.Server
	addr    net.Addr
	started time.Time

	sessMu   sync.Mutex
	sessions map[string]session
}

// Option customizes server construction.
type Option func(*Server)

// WithLogbook routes request logs to lb.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(s *Server) {
		if lb != nil {
			s.log = lb
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a sandbox server over store.
func NewServer(settings Settings, store *Store, opts ...Option) *Server {
	s := &Server{
		settings: settings.withDefaults(),
		store:    store,
		log:      logbook.Discard(),
		clock:    time.Now,
		sessions: map[string]session{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /admin/employees", s.admin(s.handleListEmployees))
	mux.HandleFunc("POST /admin/employees", s.admin(s.handleAddEmployee))
	mux.HandleFunc("POST /admin/employees/delete", s.admin(s.handleDeleteEmployee))
	mux.HandleFunc("POST /admin/employees/upload", s.admin(s.handleUpload))
	mux.HandleFunc("GET /admin/api/profile_agent/{id}", s.admin(s.handleProfileAgent))
	mux.HandleFunc("GET /admin/ai_report/{id}", s.handleReport)
	return s.logRequests(s.recoverPanics(mux))
}

// Start listens on the configured address and serves in the background.
// Requests inherit ctx.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return errors.New("sandbox: already running")
	}
	ln, err := net.Listen("tcp", s.settings.Address())
	if err != nil {
		return errors.Wrapf(err, "sandbox: listen %s", s.settings.Address())
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.http, s.addr, s.started = srv, ln.Addr(), s.clock()
	go s.serve(srv, ln)
	s.log.Info("sandbox: serving %s", s.addr)
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("sandbox: serve: %v", err)
	}
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http, s.addr = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Running reports whether Start succeeded and Shutdown has not been called.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.http != nil
}

// BaseURL is the root of the running server, or of the configured address
// before Start.
func (s *Server) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != nil {
		return "http://" + s.addr.String()
	}
	return "http://" + s.settings.Address()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Logger().Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", s.clock().Sub(start)).
			Msg("sandbox request")
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.log.Logger().Error().
					Interface("panic", rvr).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("stack_trace", string(debug.Stack())).
					Msg("sandbox: recovered from panic")
				fail(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// admin rejects requests without an admin session.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := s.sessionFor(r); !ok || sess.role != roleAdmin {
			fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) sessionFor(r *http.Request) (session, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return session{}, false
	}
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sess, ok := s.sessions[cookie.Value]
	return sess, ok
}

// clearSession drops the caller's session, if any, and expires the cookie.
func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.sessMu.Lock()
		delete(s.sessions, cookie.Value)
		s.sessMu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

func (s *Server) openSession(w http.ResponseWriter, sess session) {
	token := uuid.NewString()
	s.sessMu.Lock()
	s.sessions[token] = sess
	s.sessMu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	resp := healthResponse{Status: "ok"}
	if !started.IsZero() {
		resp.UptimeSeconds = int64(s.clock().Sub(started).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w, r)
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Missing credentials")
		return
	}
	empID, isAdmin, ok, err := s.store.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.log.Error("sandbox: login: %v", err)
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		fail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	role := roleEmployee
	if isAdmin {
		role = roleAdmin
	}
	s.openSession(w, session{empID: empID, role: role})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "role": role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type employeeRow struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name"`
	RoleName *string `json:"role_name"`
}

func (s *Server) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListEmployees(r.Context())
	if err != nil {
		s.log.Error("sandbox: list employees: %v", err)
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	rows := make([]employeeRow, 0, len(records))
	for _, rec := range records {
		row := employeeRow{ID: rec.ID}
		if rec.Name != "" {
			name := rec.Name
			row.Name = &name
		}
		if rec.RoleName.Valid {
			role := rec.RoleName.String
			row.RoleName = &role
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "employees": rows})
}

func (s *Server) handleAddEmployee(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if !s.decode(w, r, &raw) {
		return
	}
	var emp NewEmployee
	if v, ok := raw["Name"]; ok {
		_ = json.Unmarshal(v, &emp.Name)
	}
	emp.Name = strings.TrimSpace(emp.Name)
	if emp.Name == "" {
		reject(w, "Name is required.")
		return
	}
	if v, ok := raw["Password"]; ok {
		_ = json.Unmarshal(v, &emp.Password)
	}
	for i, col := range scoreColumns {
		if v, ok := raw[col.Key]; ok {
			emp.Scores[i] = parseScore(strings.Trim(string(v), `"`))
		}
	}
	id, err := s.store.AddEmployee(r.Context(), emp)
	if err != nil {
		s.log.Error("sandbox: add employee: %v", err)
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("sandbox: added employee %d (%s)", id, Username(emp.Name, id))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Employee added successfully!"})
}

type deleteRequest struct {
	EmpID int64 `json:"emp_id"`
}

func (s *Server) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.EmpID == 0 {
		fail(w, http.StatusBadRequest, "Employee ID is required")
		return
	}
	removed, err := s.store.DeleteEmployee(r.Context(), req.EmpID)
	if err != nil {
		s.log.Error("sandbox: delete employee %d: %v", req.EmpID, err)
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		reject(w, "Employee not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Employee deleted successfully."})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.settings.MaxBodyBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(w, http.StatusRequestEntityTooLarge, "payload exceeds limit")
			return
		}
		fail(w, http.StatusBadRequest, "No file part")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		fail(w, http.StatusBadRequest, "No selected file")
		return
	}
	emps, err := ReadRoster(file, header.Filename)
	if errors.Is(err, ErrUnsupportedFile) {
		reject(w, ErrUnsupportedFile.Error())
		return
	}
	if err == nil {
		var added int
		added, err = s.store.AddEmployees(r.Context(), emps)
		if err == nil {
			s.log.Info("sandbox: onboarded %d employees from %s", added, header.Filename)
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"message": fmt.Sprintf("Successfully onboarded %d new employees.", added),
			})
			return
		}
	}
	s.log.Warn("sandbox: upload %s: %v", header.Filename, err)
	reject(w, "An error occurred: "+err.Error())
}

var errBadID = errors.New("invalid employee id")

func (s *Server) lookupEmployee(r *http.Request) (EmployeeRecord, bool, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return EmployeeRecord{}, false, errBadID
	}
	return s.store.Employee(r.Context(), id)
}

func (s *Server) handleProfileAgent(w http.ResponseWriter, r *http.Request) {
	rec, found, err := s.lookupEmployee(r)
	switch {
	case errors.Is(err, errBadID):
		fail(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.log.Error("sandbox: profile agent: %v", err)
		fail(w, http.StatusInternalServerError, err.Error())
	case !found:
		reject(w, "Employee not found.")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": ProfileFor(rec)})
	}
}

// handleReport serves the plain-text report without a session check: it is
// opened in a browser that does not share the terminal client's cookie.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, found, err := s.lookupEmployee(r)
	switch {
	case errors.Is(err, errBadID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.log.Error("sandbox: report: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case !found:
		http.Error(w, "Employee not found", http.StatusNotFound)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(Report(rec)))
	}
}

// decode reads a JSON body; on failure it answers 400 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(w, http.StatusRequestEntityTooLarge, "payload exceeds limit")
			return false
		}
		fail(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// reject answers a domain failure: HTTP 200 with success false.
func reject(w http.ResponseWriter, message string) {
	fail(w, http.StatusOK, message)
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
