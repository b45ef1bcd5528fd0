package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	. "github.com/trezcool/kelasi/apps/api/echo"
	"github.com/trezcool/kelasi/core/fiche"
	"github.com/trezcool/kelasi/core/user"
	"github.com/trezcool/kelasi/tests"
)

func newFicheBody(t *testing.T) []byte {
	return marchallObj(t, fiche.NewFiche{
		Title:    "Les fractions",
		Subject:  "math",
		Level:    "5e",
		Duration: 60,
		Content: "Mise en situation: partage d'une orange.\nDéveloppement: comparer des fractions simples.\n" +
			"Synthèse: règles de comparaison.\nÉvaluation: exercices au tableau.",
		Objectives: []fiche.Objective{
			{ID: "obj-1", Description: "comparer des fractions simples"},
		},
		Activities: []fiche.Activity{
			{Title: "Comparer des fractions simples (voir obj-1)", Duration: 30},
		},
	})
}

func Test_ficheApi_create(t *testing.T) {
	app := setup(t)

	author := testutil.CreateUser(t, usrRepo, "M. Kalala", "pkalala", "pkalala@kelasi.cd", "", user.TeacherRoles, true)
	authorToken := getToken(t, author)

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/fiches", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Empty fiche fails validation", method: http.MethodPost, path: "/v1/fiches", token: authorToken,
			body: marchallObj(t, fiche.NewFiche{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"title":    "this field is required",
				"subject":  "this field is required",
				"level":    "this field is required",
				"duration": "this field is required",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Create ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fiches", authorToken, newFicheBody(t))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var f fiche.Fiche
		if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
			t.Fatalf("unmarshalling fiche failed: %v", err)
		}
		if f.ID == "" {
			t.Error("fiche ID not set")
		}
		if f.Status != fiche.StatusDraft {
			t.Errorf("Status = %s; want %s", f.Status, fiche.StatusDraft)
		}
		if f.CreatedBy != author.ID {
			t.Errorf("CreatedBy = %s; want %s", f.CreatedBy, author.ID)
		}
	})
}

func Test_ficheApi_query(t *testing.T) {
	app := setup(t)

	author := testutil.CreateUser(t, usrRepo, "M. Kalala", "pkalala", "pkalala@kelasi.cd", "", user.TeacherRoles, true)
	token := getToken(t, author)

	f1 := testutil.CreateFiche(t, ficheRepo, "Les fractions", "math", "5e", author.ID, fiche.StatusDraft)
	f2 := testutil.CreateFiche(t, ficheRepo, "La poésie lyrique", "français", "3e", author.ID, fiche.StatusPending)
	f3 := testutil.CreateFiche(t, ficheRepo, "Le cycle de l'eau", "sciences", "6e", author.ID, fiche.StatusPending)

	path := func(search, subject, status string, favorite, recent bool, favIDs, recIDs []string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if subject != "" {
			v.Add("subject", subject)
		}
		if status != "" {
			v.Add("status", status)
		}
		if favorite {
			v.Add("favorite", strconv.FormatBool(favorite))
		}
		if recent {
			v.Add("recent", strconv.FormatBool(recent))
		}
		for _, id := range favIDs {
			v.Add("favorite_id", id)
		}
		for _, id := range recIDs {
			v.Add("recent_id", id)
		}
		return "/v1/fiches?" + v.Encode()
	}
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/fiches", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: "/v1/fiches", token: token, wantCode: http.StatusOK, wantData: marchallList(t, f1, f2, f3)},
		{name: "search (unknown)", path: path("lol", "", "", false, false, nil, nil), token: token, wantCode: http.StatusOK, wantData: empty},
		{name: "search=POÉSIE", path: path("POÉSIE", "", "", false, false, nil, nil), token: token, wantCode: http.StatusOK, wantData: marchallList(t, f2)},
		{name: "subject=math", path: path("", "math", "", false, false, nil, nil), token: token, wantCode: http.StatusOK, wantData: marchallList(t, f1)},
		{name: "status=pending", path: path("", "", "pending", false, false, nil, nil), token: token, wantCode: http.StatusOK, wantData: marchallList(t, f2, f3)},
		{
			name: "favorites only", path: path("", "", "", true, false, []string{f3.ID}, nil),
			token: token, wantCode: http.StatusOK, wantData: marchallList(t, f3),
		},
		{
			name: "recents only", path: path("", "", "", false, true, nil, []string{f1.ID, f3.ID}),
			token: token, wantCode: http.StatusOK, wantData: marchallList(t, f1, f3),
		},
		{
			name: "conjunction", path: path("", "sciences", "pending", false, true, nil, []string{f1.ID, f3.ID}),
			token: token, wantCode: http.StatusOK, wantData: marchallList(t, f3),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_ficheApi_stats(t *testing.T) {
	app := setup(t)

	author := testutil.CreateUser(t, usrRepo, "M. Kalala", "pkalala", "pkalala@kelasi.cd", "", user.TeacherRoles, true)
	token := getToken(t, author)

	testutil.CreateFiche(t, ficheRepo, "Les fractions", "math", "5e", author.ID, fiche.StatusDraft)
	testutil.CreateFiche(t, ficheRepo, "La poésie lyrique", "français", "3e", author.ID, fiche.StatusPending)
	testutil.CreateFiche(t, ficheRepo, "Le cycle de l'eau", "sciences", "6e", author.ID, fiche.StatusPending)

	month := time.Now().UTC().Format("2006-01")
	want := fiche.Stats{
		Total:     3,
		ByStatus:  map[fiche.Status]int{fiche.StatusDraft: 1, fiche.StatusPending: 2},
		BySubject: map[string]int{"math": 1, "français": 1, "sciences": 1},
		ByLevel:   map[string]int{"5e": 1, "3e": 1, "6e": 1},
		ByMonth:   map[string]int{month: 3},
	}

	tt := httpTest{name: "Stats", path: "/v1/fiches/stats", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, want)}
	t.Run(tt.name, func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_ficheApi_workflow(t *testing.T) {
	app := setup(t)

	author := testutil.CreateUser(t, usrRepo, "M. Kalala", "pkalala", "pkalala@kelasi.cd", "", user.TeacherRoles, true)
	inspector := testutil.CreateUser(t, usrRepo, "Mme Tshilombo", "ctshilombo", "ctshilombo@kelasi.cd", "", []string{user.RoleInspectorPedagogical}, true)
	authorToken := getToken(t, author)
	inspectorToken := getToken(t, inspector)

	f := testutil.CreateFiche(t, ficheRepo, "Les fractions", "math", "5e", author.ID, fiche.StatusDraft)
	base := "/v1/fiches/" + f.ID

	do := func(t *testing.T, method, path, token string, data ...[]byte) *fiche.Fiche {
		t.Helper()
		req, rec := newAuthRequest(method, path, token, data...)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s failed! code = %v; body %s", method, path, rec.Code, rec.Body.String())
		}
		res := new(fiche.Fiche)
		if err := json.Unmarshal(rec.Body.Bytes(), res); err != nil {
			t.Fatalf("unmarshalling fiche failed: %v", err)
		}
		return res
	}

	// error paths first
	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: base + "/submit", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Reviewer required", method: http.MethodPost, path: base + "/validate", token: authorToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Validate draft", method: http.MethodPost, path: base + "/validate", token: inspectorToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "invalid fiche transition: draft -> validated"}),
		},
		{
			name: "Reject draft", method: http.MethodPost, path: base + "/reject", token: inspectorToken,
			body:     marchallObj(t, CommentRequest{Text: "manque de détails"}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "invalid fiche transition: draft -> rejected"}),
		},
		{name: "Unknown fiche", method: http.MethodPost, path: "/v1/fiches/nope/submit", token: authorToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "fiche not found"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Submit, reject, resubmit, validate", func(t *testing.T) {
		res := do(t, http.MethodPost, base+"/submit", authorToken)
		if res.Status != fiche.StatusPending {
			t.Errorf("Status = %s; want %s", res.Status, fiche.StatusPending)
		}

		// blank rejection comment is refused
		req, rec := newAuthRequest(http.MethodPost, base+"/reject", inspectorToken, marchallObj(t, CommentRequest{Text: "  "}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"comment": "a rejection comment is required"}),
		}, rec)

		res = do(t, http.MethodPost, base+"/reject", inspectorToken, marchallObj(t, CommentRequest{Text: "manque de détails"}))
		if res.Status != fiche.StatusRejected {
			t.Errorf("Status = %s; want %s", res.Status, fiche.StatusRejected)
		}
		if len(res.Comments) != 1 || res.Comments[0].Author != inspector.ID {
			t.Errorf("rejection comment not appended: %+v", res.Comments)
		}

		res = do(t, http.MethodPost, base+"/resubmit", authorToken)
		if res.Status != fiche.StatusPending {
			t.Errorf("Status = %s; want %s", res.Status, fiche.StatusPending)
		}

		res = do(t, http.MethodPost, base+"/validate", inspectorToken)
		if res.Status != fiche.StatusValidated {
			t.Errorf("Status = %s; want %s", res.Status, fiche.StatusValidated)
		}
		if res.ValidatedBy.String != inspector.ID {
			t.Errorf("ValidatedBy = %s; want %s", res.ValidatedBy.String, inspector.ID)
		}
		if !res.ValidatedAt.Valid {
			t.Error("ValidatedAt not set")
		}

		// terminal: no edits, no further transitions
		req, rec = newAuthRequest(http.MethodPost, base+"/submit", authorToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "invalid fiche transition: validated -> pending"}),
		}, rec)

		req, rec = newAuthRequest(http.MethodPut, base, authorToken, marchallObj(t, map[string]string{"title": "Nouveau titre"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "a validated fiche can no longer be edited"}),
		}, rec)
	})
}

func Test_ficheApi_validationVerdict(t *testing.T) {
	app := setup(t)

	author := testutil.CreateUser(t, usrRepo, "M. Kalala", "pkalala", "pkalala@kelasi.cd", "", user.TeacherRoles, true)
	inspector := testutil.CreateUser(t, usrRepo, "Mme Tshilombo", "ctshilombo", "ctshilombo@kelasi.cd", "", []string{user.RoleInspectorPedagogical}, true)
	authorToken := getToken(t, author)

	// the objective has no catalog verb: competency_types fails, all else passes
	f := fiche.Fiche{
		Title:    "Brouillon flou",
		Subject:  "math",
		Level:    "5e",
		Duration: 60,
		Content: "Mise en situation: rappel.\nDéveloppement: travail.\n" +
			"Synthèse: points clés.\nÉvaluation: exercices.",
		Objectives: []fiche.Objective{{ID: "obj-1", Description: "faire des choses"}},
		Activities: []fiche.Activity{{Title: "Travail dirigé (voir obj-1)", Duration: 30}},
		Status:     fiche.StatusPending,
		CreatedBy:  author.ID,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	f, err := ficheRepo.CreateFiche(f)
	if err != nil {
		t.Fatalf("CreateFiche() failed: %v", err)
	}

	t.Run("Evaluation preview", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fiches/"+f.ID+"/evaluation", authorToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res fiche.ValidationResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling result failed: %v", err)
		}
		if res.IsValid {
			t.Error("IsValid = true; want false")
		}
		if res.Score != 80 {
			t.Errorf("Score = %d; want 80", res.Score)
		}
		if rr := res.Rules[fiche.RuleCompetencyTypes]; rr.Valid || len(rr.Suggestions) == 0 {
			t.Errorf("competency rule verdict = %+v; want invalid with suggestions", rr)
		}
	})

	t.Run("Validate returns the verdict", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fiches/"+f.ID+"/validate", getToken(t, inspector))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Error  string                 `json:"error"`
			Result fiche.ValidationResult `json:"result"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshalling verdict failed: %v", err)
		}
		if body.Error != "fiche failed validation" {
			t.Errorf("error = %q; want %q", body.Error, "fiche failed validation")
		}
		if body.Result.Score != 80 {
			t.Errorf("Score = %d; want 80", body.Result.Score)
		}

		// the veto left the fiche untouched
		refreshed, err := ficheRepo.GetFicheByID(f.ID)
		if err != nil {
			t.Fatalf("GetFicheByID() failed: %v", err)
		}
		if refreshed.Status != fiche.StatusPending {
			t.Errorf("Status = %s; want %s", refreshed.Status, fiche.StatusPending)
		}
	})
}

func Test_ficheApi_updateDestroy(t *testing.T) {
	app := setup(t)

	author := testutil.CreateUser(t, usrRepo, "M. Kalala", "pkalala", "pkalala@kelasi.cd", "", user.TeacherRoles, true)
	other := testutil.CreateUser(t, usrRepo, "M. Mabele", "jmabele", "jmabele@kelasi.cd", "", user.TeacherRoles, true)
	admin := testutil.CreateUser(t, usrRepo, "M. Ilunga", "silunga", "silunga@kelasi.cd", "", user.AdminRoles, true)
	authorToken := getToken(t, author)
	otherToken := getToken(t, other)
	adminToken := getToken(t, admin)

	f1 := testutil.CreateFiche(t, ficheRepo, "Les fractions", "math", "5e", author.ID, fiche.StatusDraft)
	f2 := testutil.CreateFiche(t, ficheRepo, "Le cycle de l'eau", "sciences", "6e", author.ID, fiche.StatusDraft)
	f3 := testutil.CreateFiche(t, ficheRepo, "La poésie lyrique", "français", "3e", author.ID, fiche.StatusDraft)

	t.Run("Only the author edits", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/fiches/"+f1.ID, otherToken, marchallObj(t, map[string]string{"title": "Pirate"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("Update ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/fiches/"+f1.ID, authorToken, marchallObj(t, map[string]interface{}{"title": "Les fractions simples", "duration": 90}))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var f fiche.Fiche
		if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
			t.Fatalf("unmarshalling fiche failed: %v", err)
		}
		if f.Title != "Les fractions simples" {
			t.Errorf("Title = %q; want %q", f.Title, "Les fractions simples")
		}
		if f.Duration != 90 {
			t.Errorf("Duration = %d; want 90", f.Duration)
		}
		if f.Subject != f1.Subject { // unset fields keep their value
			t.Errorf("Subject = %q; want %q", f.Subject, f1.Subject)
		}
	})

	t.Run("Comment", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fiches/"+f1.ID+"/comments", otherToken, marchallObj(t, CommentRequest{Text: "très claire !"}))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var f fiche.Fiche
		if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
			t.Fatalf("unmarshalling fiche failed: %v", err)
		}
		if len(f.Comments) != 1 || f.Comments[0].Text != "très claire !" {
			t.Errorf("comment not appended: %+v", f.Comments)
		}
	})

	t.Run("Only the author or an admin deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/fiches/"+f1.ID, otherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/fiches/"+f1.ID, authorToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("author delete failed! code = %v; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodDelete, "/v1/fiches/"+f2.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("admin delete failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Bulk delete is admin only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/fiches?id="+f3.ID, authorToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/fiches?id="+f3.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("bulk delete failed! code = %v; body %s", rec.Code, rec.Body.String())
		}

		if _, err := ficheRepo.GetFicheByID(f3.ID); err != fiche.ErrNotFound {
			t.Errorf("GetFicheByID() error = %v; want %v", err, fiche.ErrNotFound)
		}
	})
}
