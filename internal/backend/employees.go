package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
)

// Employee is the server-owned roster record. Name and RoleName may be null.
type Employee struct {
	ID       int     `json:"id"`
	Name     *string `json:"name"`
	RoleName *string `json:"role_name"`
}

// Skill names one of the nine scored competencies on the employee form.
type Skill string

const (
	SkillHTML        Skill = "HTML"
	SkillCSS         Skill = "CSS"
	SkillJavaScript  Skill = "JAVASCRIPT"
	SkillPython      Skill = "PYTHON"
	SkillJava        Skill = "JAVA"
	SkillC           Skill = "C"
	SkillCPP         Skill = "CPP"
	SkillSQLTesting  Skill = "SQL_TESTING"
	SkillToolsCourse Skill = "TOOLS_COURSE"
)

// Skills lists the form's score fields in display order.
func Skills() []Skill {
	return []Skill{
		SkillHTML, SkillCSS, SkillJavaScript, SkillPython, SkillJava,
		SkillC, SkillCPP, SkillSQLTesting, SkillToolsCourse,
	}
}

// Label is the human-readable field caption.
func (s Skill) Label() string {
	switch s {
	case SkillJavaScript:
		return "JavaScript"
	case SkillPython:
		return "Python"
	case SkillJava:
		return "Java"
	case SkillCPP:
		return "C++"
	case SkillSQLTesting:
		return "SQL Testing"
	case SkillToolsCourse:
		return "Testing Tools"
	default:
		return string(s)
	}
}

// EmployeeForm is the create/update payload. Every score is always present.
type EmployeeForm struct {
	Name        string `json:"Name"`
	Password    string `json:"Password"`
	HTML        int    `json:"HTML"`
	CSS         int    `json:"CSS"`
	JavaScript  int    `json:"JAVASCRIPT"`
	Python      int    `json:"PYTHON"`
	Java        int    `json:"JAVA"`
	C           int    `json:"C"`
	CPP         int    `json:"CPP"`
	SQLTesting  int    `json:"SQL_TESTING"`
	ToolsCourse int    `json:"TOOLS_COURSE"`
}

// NewEmployeeForm builds a payload from raw field text, coercing every score.
// Skills missing from raw become 0.
func NewEmployeeForm(name, password string, raw map[Skill]string) EmployeeForm {
	form := EmployeeForm{Name: name, Password: password}
	for _, skill := range Skills() {
		*form.score(skill) = CoerceScore(raw[skill])
	}
	return form
}

// Score returns the value stored for skill.
func (f EmployeeForm) Score(skill Skill) int {
	if p := f.score(skill); p != nil {
		return *p
	}
	return 0
}

func (f *EmployeeForm) score(skill Skill) *int {
	switch skill {
	case SkillHTML:
		return &f.HTML
	case SkillCSS:
		return &f.CSS
	case SkillJavaScript:
		return &f.JavaScript
	case SkillPython:
		return &f.Python
	case SkillJava:
		return &f.Java
	case SkillC:
		return &f.C
	case SkillCPP:
		return &f.CPP
	case SkillSQLTesting:
		return &f.SQLTesting
	case SkillToolsCourse:
		return &f.ToolsCourse
	}
	var discard int
	return &discard
}

// CoerceScore reads the leading integer of raw. Empty, non-numeric and
// negative input all yield 0; oversized values saturate at MaxInt32.
func CoerceScore(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	negative := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		negative = true
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 || negative {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Level is a skill proficiency as reported by the profile agent. Numeric
// levels are kept in their textual form.
type Level string

func (l *Level) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*l = Level(s)
		return nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		*l = ""
		return nil
	}
	*l = Level(trimmed)
	return nil
}

// SkillVector is one inferred skill.
type SkillVector struct {
	Skill string `json:"skill"`
	Level Level  `json:"level"`
}

// ProfileResult is the profile agent payload.
type ProfileResult struct {
	SkillVectors []SkillVector `json:"skill_vectors"`
	HistoryLogs  []string      `json:"history_logs"`
}

// ListEmployees fetches the roster in server order.
func (c *Client) ListEmployees(ctx context.Context) ([]Employee, error) {
	const op = "list roster"
	env, _, err := c.call(ctx, op, http.MethodGet, pathEmployees, nil, "")
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, rejected(op, env)
	}
	return env.Employees, nil
}

// SaveEmployee creates or updates one employee and returns the server message.
func (c *Client) SaveEmployee(ctx context.Context, form EmployeeForm) (string, error) {
	const op = "save employee"
	env, _, err := c.callJSON(ctx, op, http.MethodPost, pathEmployees, form)
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", rejected(op, env)
	}
	return env.Message, nil
}

// DeleteEmployee removes one employee by id.
func (c *Client) DeleteEmployee(ctx context.Context, id int) (string, error) {
	const op = "delete employee"
	env, _, err := c.callJSON(ctx, op, http.MethodPost, pathDelete, map[string]int{"emp_id": id})
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", rejected(op, env)
	}
	return env.Message, nil
}

// ProfileAgent runs the profile analysis for one employee.
func (c *Client) ProfileAgent(ctx context.Context, id int) (ProfileResult, error) {
	const op = "profile agent"
	env, status, err := c.call(ctx, op, http.MethodGet, fmt.Sprintf("%s%d", pathProfileAgent, id), nil, "")
	if err != nil {
		return ProfileResult{}, err
	}
	if !env.Success {
		return ProfileResult{}, rejected(op, env)
	}
	var result ProfileResult
	if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return ProfileResult{}, c.transport(op, status, errors.Wrap(err, "decode data"))
		}
	}
	return result, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadRoster submits a roster file as multipart field "file".
func (c *Client) UploadRoster(ctx context.Context, path string) (string, error) {
	const op = "bulk upload"
	f, err := os.Open(path)
	if err != nil {
		return "", c.transport(op, 0, errors.Wrap(err, "open upload"))
	}
	defer f.Close()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(f); err == nil {
		contentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", c.transport(op, 0, errors.Wrap(err, "rewind upload"))
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filepath.Base(path))))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", c.transport(op, 0, errors.Wrap(err, "prepare upload"))
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", c.transport(op, 0, errors.Wrap(err, "read upload"))
	}
	if err := writer.Close(); err != nil {
		return "", c.transport(op, 0, errors.Wrap(err, "finalize upload"))
	}

	env, _, err := c.call(ctx, op, http.MethodPost, pathUpload, &body, writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", rejected(op, env)
	}
	return env.Message, nil
}
