package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/sqlroom/sqlroom/internal/catalog"
	"github.com/sqlroom/sqlroom/internal/engine"
	"github.com/sqlroom/sqlroom/internal/grading"
	"github.com/sqlroom/sqlroom/internal/models"
	"github.com/sqlroom/sqlroom/internal/schema"
	"github.com/sqlroom/sqlroom/internal/sqlguard"
	"github.com/sqlroom/sqlroom/internal/store"
)

var (
	ErrQuestionNotFound     = errors.New("question not found")
	ErrSchemaImportNotFound = errors.New("schema import not found")
	ErrSchemaNotDeployed    = errors.New("schema is not deployed")
	ErrNotInAssignment      = errors.New("question is not part of this assignment")
	ErrForbidden            = errors.New("access denied")
	ErrDatabaseNotAllowed   = errors.New("database is not in the allowed list")
)

// Service wires the metadata store, the execution engine, and the schema
// deployer behind the operations the HTTP layer exposes.
type Service struct {
	Config   *Config
	Store    store.Store
	Engine   *engine.Engine
	Deployer *schema.Deployer

	sharedDB *sqlx.DB
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	locker, err := NewLocker(config.Deploy.RedisURL, config.LockTTL())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to init deploy locker: %w", err)
	}

	// Lazily connected: deployments and MySQL questions are the only users,
	// and a sqlite-only install should start without a MySQL server around.
	sharedDB, err := sqlx.Open("mysql", config.MySQL.DSN(config.MySQL.SharedDatabase))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open shared mysql handle: %w", err)
	}

	return &Service{
		Config:   config,
		Store:    st,
		Engine:   engine.New(config.MySQL, config.QueryTimeout()),
		Deployer: schema.NewDeployer(sharedDB, locker, config.Deploy.Grants),
		sharedDB: sharedDB,
	}, nil
}

func (s *Service) Close() {
	if err := s.Store.Close(); err != nil {
		logger.Error.Printf("Failed to close store: %v", err)
	}
	if err := s.sharedDB.Close(); err != nil {
		logger.Error.Printf("Failed to close shared mysql handle: %v", err)
	}
}

// ValidateHeaders checks the static required headers from config. An empty
// requirement list accepts everything.
func (s *Service) ValidateHeaders(h http.Header) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		if h.Get(required.Name) != required.Value {
			return false
		}
	}
	return true
}

// UserID extracts the caller's id from the configured identity header.
func (s *Service) UserID(r *http.Request) (int64, error) {
	raw := r.Header.Get(s.Config.API.UserIDHeader)
	if raw == "" {
		return 0, fmt.Errorf("missing %s header", s.Config.API.UserIDHeader)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

// rewriteInfo carries the namespace rewrite for imported-schema questions:
// every query against such a question must have its table names prefixed
// before execution.
type rewriteInfo struct {
	prefix string
	tables []string
}

func (r *rewriteInfo) apply(query string) string {
	if r == nil {
		return query
	}
	return schema.RewriteQuery(query, r.tables, r.prefix)
}

// resolveTarget maps a question onto an execution target, plus the table
// rewrite to apply for imported schemas.
func (s *Service) resolveTarget(ctx context.Context, q *models.Question) (engine.Target, *rewriteInfo, error) {
	switch q.DBType {
	case models.DBTypeSQLite:
		if q.SampleDBSchema == nil || *q.SampleDBSchema == "" {
			return engine.Target{}, nil, fmt.Errorf("question %d has no sample schema", q.ID)
		}
		return engine.Target{Kind: engine.KindSQLiteEphemeral, SchemaScript: *q.SampleDBSchema}, nil, nil

	case models.DBTypeMySQL:
		if q.MySQLDBName == nil || *q.MySQLDBName == "" {
			return engine.Target{}, nil, fmt.Errorf("question %d has no mysql database name", q.ID)
		}
		database, err := s.Engine.ResolveDatabase(ctx, *q.MySQLDBName, s.Config.Execution.DBPrefixes)
		if err != nil {
			return engine.Target{}, nil, err
		}
		return engine.Target{Kind: engine.KindMySQLShared, Database: database}, nil, nil

	case models.DBTypeImportedSchema:
		if q.SchemaImportID == nil {
			return engine.Target{}, nil, fmt.Errorf("question %d has no schema import", q.ID)
		}
		imp, err := s.Store.GetSchemaImport(*q.SchemaImportID)
		if err != nil {
			return engine.Target{}, nil, err
		}
		if imp == nil {
			return engine.Target{}, nil, ErrSchemaImportNotFound
		}
		if !imp.Deployed() {
			return engine.Target{}, nil, ErrSchemaNotDeployed
		}
		rewrite := &rewriteInfo{
			prefix: *imp.ActiveSchemaName,
			tables: schema.TableNames(imp.SchemaContent),
		}
		return engine.Target{Kind: engine.KindMySQLShared, Database: s.Config.MySQL.SharedDatabase}, rewrite, nil

	default:
		return engine.Target{}, nil, fmt.Errorf("question %d has unknown db type %q", q.ID, q.DBType)
	}
}

// RunQuery executes a student's practice query against a question's database
// without grading it.
func (s *Service) RunQuery(ctx context.Context, userID, questionID int64, query string) (*engine.Result, error) {
	if err := sqlguard.ValidateReadOnly(query); err != nil {
		return nil, err
	}

	question, err := s.Store.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, ErrQuestionNotFound
	}

	target, rewrite, err := s.resolveTarget(ctx, question)
	if err != nil {
		return nil, err
	}

	result, err := s.Engine.Execute(ctx, rewrite.apply(query), target)
	if err != nil {
		return nil, err
	}

	if catalog.IsShowTables(query) && target.Kind == engine.KindMySQLShared {
		schemas, err := s.accessibleDeployedSchemas(userID)
		if err != nil {
			return nil, err
		}
		result = catalog.FilterShowTables(result, target.Database, s.Config.MySQL.SharedDatabase, schemas)
	}
	return result, nil
}

// GradeSubmission runs the student's answer and the reference answer under
// equivalent conditions, compares the results, and records the attempt. The
// returned score is the points the question is worth in this assignment, not
// the points awarded.
func (s *Service) GradeSubmission(ctx context.Context, studentID, questionID, assignmentID int64, answer string) (*grading.Verdict, int, error) {
	if err := sqlguard.ValidateReadOnly(answer); err != nil {
		return nil, 0, err
	}

	question, err := s.Store.GetQuestion(questionID)
	if err != nil {
		return nil, 0, err
	}
	if question == nil {
		return nil, 0, ErrQuestionNotFound
	}

	aq, err := s.Store.GetAssignmentQuestion(assignmentID, questionID)
	if err != nil {
		return nil, 0, err
	}
	if aq == nil {
		return nil, 0, ErrNotInAssignment
	}

	target, rewrite, err := s.resolveTarget(ctx, question)
	if err != nil {
		return nil, 0, err
	}

	student, reference, err := s.Engine.ExecutePair(ctx,
		rewrite.apply(answer), rewrite.apply(question.CorrectAnswer), target)
	if err != nil {
		if errors.Is(err, engine.ErrReferenceQuery) {
			logger.Error.Printf("Reference query for question %d failed: %v", questionID, err)
		}
		return nil, 0, err
	}

	grader := s.graderFor(question)
	verdict := grader.Grade(student, reference)

	sub := &models.Submission{
		StudentID:       studentID,
		QuestionID:      questionID,
		AssignmentID:    assignmentID,
		SubmittedAnswer: answer,
		IsCorrect:       verdict.IsCorrect,
		Feedback:        verdict.Feedback,
		SubmittedAt:     time.Now().UTC(),
	}
	if err := s.Store.UpsertSubmission(sub); err != nil {
		return nil, 0, err
	}

	return &verdict, aq.Score, nil
}

func (s *Service) graderFor(q *models.Question) *grading.Grader {
	if q.UsesMySQL() {
		return &grading.Grader{OrderSensitive: s.Config.Grading.MySQLOrderSensitive}
	}
	return &grading.Grader{OrderSensitive: s.Config.Grading.SQLiteOrderSensitive}
}

// RunPlayground executes a free-form query against either an allowed course
// database or one of the caller's deployed schemas, presented as a
// pseudo-database.
func (s *Service) RunPlayground(ctx context.Context, userID int64, database, query string) (*engine.Result, error) {
	if err := sqlguard.ValidateReadOnly(query); err != nil {
		return nil, err
	}

	imports, err := s.Store.AccessibleSchemas(userID)
	if err != nil {
		return nil, err
	}
	schemas := deployedView(imports)

	if catalog.IsShowDatabases(query) {
		raw, err := s.Engine.Execute(ctx, query, engine.Target{
			Kind:     engine.KindMySQLShared,
			Database: s.Config.MySQL.SharedDatabase,
		})
		if err != nil {
			return nil, err
		}
		allowed, err := s.allowedDatabaseNames()
		if err != nil {
			return nil, err
		}
		return catalog.FilterShowDatabases(raw, allowed, schemas), nil
	}

	target, rewrite, err := s.resolvePlaygroundTarget(ctx, database, imports)
	if err != nil {
		return nil, err
	}

	result, err := s.Engine.Execute(ctx, rewrite.apply(query), target)
	if err != nil {
		return nil, err
	}

	if catalog.IsShowTables(query) {
		result = catalog.FilterShowTables(result, target.Database, s.Config.MySQL.SharedDatabase, schemas)
	}
	return result, nil
}

// resolvePlaygroundTarget treats a deployed schema name as a pseudo-database
// inside the shared database; anything else must pass the admin allowlist.
func (s *Service) resolvePlaygroundTarget(ctx context.Context, database string, imports []models.SchemaImport) (engine.Target, *rewriteInfo, error) {
	for i := range imports {
		imp := &imports[i]
		if imp.Name != database || !imp.Deployed() {
			continue
		}
		rewrite := &rewriteInfo{
			prefix: *imp.ActiveSchemaName,
			tables: schema.TableNames(imp.SchemaContent),
		}
		return engine.Target{Kind: engine.KindMySQLShared, Database: s.Config.MySQL.SharedDatabase}, rewrite, nil
	}

	allowed, err := s.allowedDatabaseNames()
	if err != nil {
		return engine.Target{}, nil, err
	}
	permitted := false
	for _, name := range allowed {
		if name == database {
			permitted = true
			break
		}
	}
	if !permitted {
		return engine.Target{}, nil, ErrDatabaseNotAllowed
	}

	resolved, err := s.Engine.ResolveDatabase(ctx, database, s.Config.Execution.DBPrefixes)
	if err != nil {
		return engine.Target{}, nil, err
	}
	return engine.Target{Kind: engine.KindMySQLShared, Database: resolved}, nil, nil
}

// AvailableDatabases lists what the playground database picker should offer:
// allowed course databases that actually exist, plus the caller's deployed
// schemas as pseudo-databases.
func (s *Service) AvailableDatabases(ctx context.Context, userID int64) ([]string, error) {
	existing, err := s.Engine.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	allowed, err := s.allowedDatabaseNames()
	if err != nil {
		return nil, err
	}
	schemas, err := s.accessibleDeployedSchemas(userID)
	if err != nil {
		return nil, err
	}

	raw := &engine.Result{Columns: []string{"Database"}}
	for _, name := range existing {
		raw.Rows = append(raw.Rows, []interface{}{name})
	}
	filtered := catalog.FilterShowDatabases(raw, allowed, schemas)

	names := make([]string, 0, len(filtered.Rows))
	for _, row := range filtered.Rows {
		names = append(names, row[0].(string))
	}
	return names, nil
}

// DeploySchema deploys a schema import into the shared database and records
// the resulting prefix. A deployment that creates zero tables is rolled back
// to the undeployed state rather than recorded.
func (s *Service) DeploySchema(ctx context.Context, ownerID, importID int64) (*schema.DeployResult, error) {
	imp, err := s.Store.GetSchemaImport(importID)
	if err != nil {
		return nil, err
	}
	if imp == nil {
		return nil, ErrSchemaImportNotFound
	}
	if imp.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	result, err := s.Deployer.Deploy(ctx, imp.Namespace(), imp.SchemaContent)
	if err != nil {
		return nil, err
	}
	if len(result.TablesCreated) == 0 {
		if err := s.Store.SetActiveSchemaName(importID, nil); err != nil {
			logger.Error.Printf("Failed to clear active schema name for import %d: %v", importID, err)
		}
		return nil, fmt.Errorf("deployment of import %d created no tables", importID)
	}

	if err := s.Store.SetActiveSchemaName(importID, &result.Prefix); err != nil {
		return nil, fmt.Errorf("deployed but failed to record prefix: %w", err)
	}
	return result, nil
}

// TeardownSchema drops a deployed schema's tables and clears its prefix.
func (s *Service) TeardownSchema(ctx context.Context, ownerID, importID int64) error {
	imp, err := s.Store.GetSchemaImport(importID)
	if err != nil {
		return err
	}
	if imp == nil {
		return ErrSchemaImportNotFound
	}
	if imp.OwnerID != ownerID {
		return ErrForbidden
	}

	if err := s.Deployer.Teardown(ctx, imp.Namespace()); err != nil {
		return err
	}
	return s.Store.SetActiveSchemaName(importID, nil)
}

// ListSchemaImports returns the caller's own schema imports.
func (s *Service) ListSchemaImports(ownerID int64) ([]models.SchemaImport, error) {
	return s.Store.ListSchemaImportsByOwner(ownerID)
}

// accessibleDeployedSchemas maps the user's accessible schema imports to the
// catalog view, keeping only deployed ones.
func (s *Service) accessibleDeployedSchemas(userID int64) ([]catalog.DeployedSchema, error) {
	imports, err := s.Store.AccessibleSchemas(userID)
	if err != nil {
		return nil, err
	}
	return deployedView(imports), nil
}

func (s *Service) allowedDatabaseNames() ([]string, error) {
	entries, err := s.Store.ListAllowedDatabases()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.DatabaseName)
	}
	return names, nil
}

func deployedView(imports []models.SchemaImport) []catalog.DeployedSchema {
	schemas := make([]catalog.DeployedSchema, 0, len(imports))
	for _, imp := range imports {
		if !imp.Deployed() {
			continue
		}
		schemas = append(schemas, catalog.DeployedSchema{
			Name:   imp.Name,
			Prefix: *imp.ActiveSchemaName,
		})
	}
	return schemas
}
