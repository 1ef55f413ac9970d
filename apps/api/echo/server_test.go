package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/digitme/digit/apps/api/echo"
	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/admin"
	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/stats"
	"github.com/digitme/digit/core/user"
	"github.com/digitme/digit/services/scheduler"
	"github.com/digitme/digit/storage/database/dummy"
	"github.com/digitme/digit/testutil"
)

const pwd = "Pass1234!"

type httpTest struct {
	name     string
	method   string
	path     string
	token    string
	body     interface{}
	wantCode int
	wantData string
}

type fixture struct {
	srv      *echoapi.Server
	repo     school.Repository
	jobRuns  map[string]int
	tokens   map[string]string
	classes  [2]school.Class
	parts    [2]school.Participant
	question school.Question
	right    school.Option
	wrong    school.Option
}

func setup(t *testing.T) *fixture {
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := &testutil.Logger{}

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo := dummydb.NewUserRepository(db)
	repo := dummydb.NewSchoolRepository(db)

	f := &fixture{repo: repo, jobRuns: make(map[string]int), tokens: make(map[string]string)}

	schoolSvc := school.NewService(repo, logger)
	statsSvc, err := stats.NewService(repo)
	require.NoError(t, err)
	jobs, err := scheduler.New(logger, scheduler.Job{
		Name: scheduler.GradeUp,
		Run: func(context.Context) error {
			f.jobRuns[scheduler.GradeUp]++
			return nil
		},
	})
	require.NoError(t, err)

	f.srv = echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        user.NewService(usrRepo, validate),
		SchoolSvc:      schoolSvc,
		StatsSvc:       statsSvc,
		Learners:       repo,
		Filters:        admin.Filters(repo),
		Actions:        admin.NewActions(schoolSvc, repo, logger),
		Jobs:           jobs,
	})

	users := []struct {
		uname  string
		roles  []string
		active bool
	}{
		{"admin", []string{user.RoleAdmin}, true},
		{"manager", []string{user.RoleAdminManager}, true},
		{"teacher", []string{user.RoleTeacher}, true},
		{"retired", []string{user.RoleTeacher}, false},
	}
	for _, u := range users {
		usr := testutil.CreateUser(t, usrRepo, u.uname, u.uname, u.uname+"@dig-it.me", pwd, u.roles, u.active)
		token, err := f.srv.GenerateToken(usr)
		require.NoError(t, err)
		f.tokens[u.uname] = token
	}

	_, f.classes[0] = testutil.CreateClass(t, repo, "Maths 1A")
	_, f.classes[1] = testutil.CreateClass(t, repo, "Science 1A")
	for i, name := range []string{"thabo", "naledi"} {
		l := testutil.CreateLearner(t, repo, name, school.Grade10, 0)
		f.parts[i] = testutil.CreateParticipant(t, repo, l.ID, f.classes[i].ID, true)
	}
	module, err := repo.CreateModule(ctx, school.Module{Name: "Algebra", IsActive: true})
	require.NoError(t, err)
	f.question, f.right, f.wrong = testutil.CreateQuestion(t, repo, module.ID, 5)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantData != "" {
				assert.JSONEq(t, tc.wantData, rec.Body.String())
			}
		})
	}
}

func TestServer_home(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to dig-it API!", rec.Body.String())
}

func TestUserAPI_login(t *testing.T) {
	f := setup(t)
	f.run(t, []httpTest{
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     echo.Map{"username": "admin"},
			wantCode: http.StatusBadRequest,
			wantData: `{"password": "this field is required"}`,
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     echo.Map{"username": "admin", "password": "nope"},
			wantCode: http.StatusBadRequest,
			wantData: `{"error": "authentication failed"}`,
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     echo.Map{"username": "ghost", "password": pwd},
			wantCode: http.StatusBadRequest,
			wantData: `{"error": "authentication failed"}`,
		},
		{
			name:     "deactivated",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     echo.Map{"username": "retired", "password": pwd},
			wantCode: http.StatusForbidden,
			wantData: `{"error": "account deactivated"}`,
		},
	})

	t.Run("by email", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/users/login", "", echo.Map{"username": "Teacher@dig-it.me", "password": pwd})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp echoapi.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)

		rec = f.do(t, http.MethodGet, "/v1/users/me", resp.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var usr user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
		assert.Equal(t, "teacher", usr.Username)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func TestUserAPI_authed(t *testing.T) {
	f := setup(t)
	f.run(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "bad token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    "not.a.token",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "refresh deactivated",
			method:   http.MethodPost,
			path:     "/v1/users/token-refresh",
			token:    f.tokens["retired"],
			wantCode: http.StatusForbidden,
		},
		{
			name:     "refresh",
			method:   http.MethodPost,
			path:     "/v1/users/token-refresh",
			token:    f.tokens["teacher"],
			wantCode: http.StatusOK,
		},
		{
			name:     "roles as teacher",
			method:   http.MethodGet,
			path:     "/v1/users/roles",
			token:    f.tokens["teacher"],
			wantCode: http.StatusForbidden,
			wantData: `{"error": "permission denied"}`,
		},
		{
			name:     "register as plain admin",
			method:   http.MethodPost,
			path:     "/v1/users/register",
			token:    f.tokens["admin"],
			body:     echo.Map{"name": "Lerato"},
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("query teachers", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/users?role=teacher:&active=true", f.tokens["admin"], nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var users []user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		require.Len(t, users, 1)
		assert.Equal(t, "teacher", users[0].Username)
	})

	t.Run("register", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/users/register", f.tokens["manager"], echo.Map{
			"name":             "Lerato Mokoena",
			"username":         "lerato",
			"email":            "lerato@dig-it.me",
			"password":         "Zebra#Crossing9",
			"password_confirm": "Zebra#Crossing9",
			"roles":            []string{user.RoleTeacher},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usr))
		assert.Equal(t, "lerato", usr.Username)
		assert.True(t, usr.IsTeacher())
	})
}

func TestSchoolAPI(t *testing.T) {
	f := setup(t)
	part := strconv.Itoa(f.parts[0].ID)

	f.run(t, []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodGet,
			path:     "/v1/participants/" + part + "/level",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "unknown participant",
			method:   http.MethodGet,
			path:     "/v1/participants/999/level",
			token:    f.tokens["teacher"],
			wantCode: http.StatusNotFound,
			wantData: `{"error": "participant not found"}`,
		},
		{
			name:     "invalid id",
			method:   http.MethodGet,
			path:     "/v1/participants/abc/level",
			token:    f.tokens["teacher"],
			wantCode: http.StatusNotFound,
		},
		{
			name:     "missing option",
			method:   http.MethodPost,
			path:     "/v1/participants/" + part + "/answers",
			token:    f.tokens["teacher"],
			body:     echo.Map{"question_id": f.question.ID},
			wantCode: http.StatusBadRequest,
			wantData: `{"option_id": "this field is required"}`,
		},
		{
			name:     "wrong answer",
			method:   http.MethodPost,
			path:     "/v1/participants/" + part + "/answers",
			token:    f.tokens["teacher"],
			body:     echo.Map{"question_id": f.question.ID, "option_id": f.wrong.ID},
			wantCode: http.StatusCreated,
		},
		{
			name:     "right answer",
			method:   http.MethodPost,
			path:     "/v1/participants/" + part + "/answers",
			token:    f.tokens["teacher"],
			body:     echo.Map{"question_id": f.question.ID, "option_id": f.right.ID},
			wantCode: http.StatusCreated,
		},
		{
			name:     "level",
			method:   http.MethodGet,
			path:     "/v1/participants/" + part + "/level",
			token:    f.tokens["teacher"],
			wantCode: http.StatusOK,
			wantData: `{"points": 5, "level": 1, "points_remaining": 95}`,
		},
		{
			name:     "no golden egg",
			method:   http.MethodPost,
			path:     "/v1/participants/" + part + "/golden-egg",
			token:    f.tokens["teacher"],
			wantCode: http.StatusNotFound,
			wantData: `{"error": "no active golden egg"}`,
		},
		{
			name:     "recalculate as teacher",
			method:   http.MethodPost,
			path:     "/v1/participants/" + part + "/recalculate",
			token:    f.tokens["teacher"],
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing setting",
			method:   http.MethodGet,
			path:     "/v1/settings/welcome",
			token:    f.tokens["manager"],
			wantCode: http.StatusNotFound,
		},
		{
			name:     "save setting",
			method:   http.MethodPut,
			path:     "/v1/settings/welcome",
			token:    f.tokens["manager"],
			body:     echo.Map{"value": "hello"},
			wantCode: http.StatusOK,
		},
		{
			name:     "get setting",
			method:   http.MethodGet,
			path:     "/v1/settings/welcome",
			token:    f.tokens["manager"],
			wantCode: http.StatusOK,
			wantData: `{"key": "welcome", "value": "hello"}`,
		},
	})
}

func TestStatsAPI(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, opt := range []school.Option{f.right, f.wrong, f.right} {
		_, err := f.repo.CreateAnswer(ctx, school.Answer{
			ParticipantID: f.parts[0].ID,
			QuestionID:    f.question.ID,
			OptionID:      opt.ID,
			Correct:       opt.Correct,
			AnsweredAt:    time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	f.run(t, []httpTest{
		{
			name:     "teacher",
			method:   http.MethodGet,
			path:     "/v1/stats",
			token:    f.tokens["teacher"],
			wantCode: http.StatusForbidden,
		},
		{
			name:     "negative hours",
			method:   http.MethodGet,
			path:     "/v1/stats?hours=-1",
			token:    f.tokens["admin"],
			wantCode: http.StatusBadRequest,
			wantData: `{"hours": "must be a positive integer"}`,
		},
		{
			name:     "last day",
			method:   http.MethodGet,
			path:     "/v1/stats",
			token:    f.tokens["admin"],
			wantCode: http.StatusOK,
			wantData: `{"hours": 24, "registered": 2, "answered": 3, "answered_correctly": 2, "percentage_correct": 66}`,
		},
		{
			name:     "question",
			method:   http.MethodGet,
			path:     "/v1/stats/questions/" + strconv.Itoa(f.question.ID),
			token:    f.tokens["admin"],
			wantCode: http.StatusOK,
			wantData: `{"question_id": ` + strconv.Itoa(f.question.ID) + `, "answered": 3, "answered_correctly": 2, "percentage_correct": 66}`,
		},
	})
}

func TestAdminAPI(t *testing.T) {
	f := setup(t)
	class := strconv.Itoa(f.classes[1].ID)

	f.run(t, []httpTest{
		{
			name:     "invalid class filter",
			method:   http.MethodGet,
			path:     "/v1/admin/learners?cid=abc",
			token:    f.tokens["admin"],
			wantCode: http.StatusBadRequest,
			wantData: `{"cid": "must be a positive integer"}`,
		},
		{
			name:     "unknown class action",
			method:   http.MethodPost,
			path:     "/v1/admin/classes/actions",
			token:    f.tokens["admin"],
			body:     echo.Map{"action": "explode", "ids": []int{f.classes[0].ID}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "no ids",
			method:   http.MethodPost,
			path:     "/v1/admin/classes/actions",
			token:    f.tokens["admin"],
			body:     echo.Map{"action": string(admin.DeactivateClass)},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown class",
			method:   http.MethodPost,
			path:     "/v1/admin/classes/actions",
			token:    f.tokens["admin"],
			body:     echo.Map{"action": string(admin.DeactivateClass), "ids": []int{999}},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "deactivate class",
			method:   http.MethodPost,
			path:     "/v1/admin/classes/actions",
			token:    f.tokens["admin"],
			body:     echo.Map{"action": string(admin.DeactivateClass), "ids": []int{f.classes[1].ID}},
			wantCode: http.StatusOK,
			wantData: `{"updated": 1}`,
		},
		{
			name:     "question action as plain admin",
			method:   http.MethodPost,
			path:     "/v1/admin/questions/actions",
			token:    f.tokens["admin"],
			body:     echo.Map{"action": string(admin.MakeReady), "ids": []int{f.question.ID}},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "question action",
			method:   http.MethodPost,
			path:     "/v1/admin/questions/actions",
			token:    f.tokens["manager"],
			body:     echo.Map{"action": string(admin.MakeReady), "ids": []int{f.question.ID}},
			wantCode: http.StatusOK,
			wantData: `{"updated": 1}`,
		},
		{
			name:     "unknown job",
			method:   http.MethodPost,
			path:     "/v1/admin/jobs/bogus",
			token:    f.tokens["manager"],
			wantCode: http.StatusNotFound,
			wantData: `{"error": "unknown job"}`,
		},
		{
			name:     "job as plain admin",
			method:   http.MethodPost,
			path:     "/v1/admin/jobs/gradeup",
			token:    f.tokens["admin"],
			wantCode: http.StatusForbidden,
		},
		{
			name:     "job",
			method:   http.MethodPost,
			path:     "/v1/admin/jobs/gradeup",
			token:    f.tokens["manager"],
			wantCode: http.StatusOK,
			wantData: `{"success": "job gradeup done"}`,
		},
	})
	assert.Equal(t, 1, f.jobRuns[scheduler.GradeUp])

	t.Run("filters", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/admin/filters", f.tokens["admin"], nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var options map[string][]admin.Option
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &options))
		assert.Len(t, options["id"], 2)
		assert.Len(t, options["cid"], 2)
		assert.Equal(t, []admin.Option{{Value: admin.AirtimeAward, Label: "12 to 15 questions correct"}}, options["name"])
	})

	t.Run("learners by class", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/admin/learners?cid="+class, f.tokens["admin"], nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var learners []school.Learner
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &learners))
		require.Len(t, learners, 1)
		assert.Equal(t, "naledi", learners[0].FirstName)
	})

	t.Run("deactivated participants", func(t *testing.T) {
		p, err := f.repo.GetParticipant(context.Background(), f.parts[1].ID)
		require.NoError(t, err)
		assert.False(t, p.IsActive)
	})
}
