package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("sqlite3", dsn+sep+"_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateHostedService(ctx context.Context, svc *HostedService) error {
	return createHostedService(ctx, s.db, svc)
}

func (s *SQLiteStore) GetHostedService(ctx context.Context, subscription, name string) (*HostedService, error) {
	return getHostedService(ctx, s.db, subscription, name)
}

func (s *SQLiteStore) ListHostedServices(ctx context.Context, subscription string, opts ListOptions) ([]HostedService, error) {
	return listHostedServices(ctx, s.db, subscription, opts)
}

func (s *SQLiteStore) CreateStorageAccount(ctx context.Context, acct *StorageAccount) error {
	return createStorageAccount(ctx, s.db, acct)
}

func (s *SQLiteStore) GetStorageAccount(ctx context.Context, subscription, name string) (*StorageAccount, error) {
	return getStorageAccount(ctx, s.db, subscription, name)
}

func (s *SQLiteStore) AddCertificate(ctx context.Context, cert *Certificate) error {
	return addCertificate(ctx, s.db, cert)
}

func (s *SQLiteStore) ListCertificates(ctx context.Context, subscription, service string) ([]Certificate, error) {
	return listCertificates(ctx, s.db, subscription, service)
}

func (s *SQLiteStore) AddExtension(ctx context.Context, ext *Extension) error {
	return addExtension(ctx, s.db, ext)
}

func (s *SQLiteStore) GetExtension(ctx context.Context, subscription, service, id string) (*Extension, error) {
	return getExtension(ctx, s.db, subscription, service, id)
}

func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *Deployment) error {
	return createDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, subscription, service string, slot domain.Slot) (*Deployment, error) {
	return getDeployment(ctx, s.db, subscription, service, slot)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, d *Deployment) error {
	return updateDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) DeleteDeployment(ctx context.Context, subscription, service string, slot domain.Slot) error {
	return deleteDeployment(ctx, s.db, subscription, service, slot)
}

func (s *SQLiteStore) CreateOperation(ctx context.Context, op *Operation) error {
	return createOperation(ctx, s.db, op)
}

func (s *SQLiteStore) GetOperation(ctx context.Context, subscription, id string) (*Operation, error) {
	return getOperation(ctx, s.db, subscription, id)
}

func (s *SQLiteStore) GetOperationByClientRequestID(ctx context.Context, subscription, clientRequestID string) (*Operation, error) {
	return getOperationByClientRequestID(ctx, s.db, subscription, clientRequestID)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateHostedService(ctx context.Context, svc *HostedService) error {
	return createHostedService(ctx, s.tx, svc)
}

func (s *txSQLiteStore) GetHostedService(ctx context.Context, subscription, name string) (*HostedService, error) {
	return getHostedService(ctx, s.tx, subscription, name)
}

func (s *txSQLiteStore) ListHostedServices(ctx context.Context, subscription string, opts ListOptions) ([]HostedService, error) {
	return listHostedServices(ctx, s.tx, subscription, opts)
}

func (s *txSQLiteStore) CreateStorageAccount(ctx context.Context, acct *StorageAccount) error {
	return createStorageAccount(ctx, s.tx, acct)
}

func (s *txSQLiteStore) GetStorageAccount(ctx context.Context, subscription, name string) (*StorageAccount, error) {
	return getStorageAccount(ctx, s.tx, subscription, name)
}

func (s *txSQLiteStore) AddCertificate(ctx context.Context, cert *Certificate) error {
	return addCertificate(ctx, s.tx, cert)
}

func (s *txSQLiteStore) ListCertificates(ctx context.Context, subscription, service string) ([]Certificate, error) {
	return listCertificates(ctx, s.tx, subscription, service)
}

func (s *txSQLiteStore) AddExtension(ctx context.Context, ext *Extension) error {
	return addExtension(ctx, s.tx, ext)
}

func (s *txSQLiteStore) GetExtension(ctx context.Context, subscription, service, id string) (*Extension, error) {
	return getExtension(ctx, s.tx, subscription, service, id)
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, d *Deployment) error {
	return createDeployment(ctx, s.tx, d)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, subscription, service string, slot domain.Slot) (*Deployment, error) {
	return getDeployment(ctx, s.tx, subscription, service, slot)
}

func (s *txSQLiteStore) UpdateDeployment(ctx context.Context, d *Deployment) error {
	return updateDeployment(ctx, s.tx, d)
}

func (s *txSQLiteStore) DeleteDeployment(ctx context.Context, subscription, service string, slot domain.Slot) error {
	return deleteDeployment(ctx, s.tx, subscription, service, slot)
}

func (s *txSQLiteStore) CreateOperation(ctx context.Context, op *Operation) error {
	return createOperation(ctx, s.tx, op)
}

func (s *txSQLiteStore) GetOperation(ctx context.Context, subscription, id string) (*Operation, error) {
	return getOperation(ctx, s.tx, subscription, id)
}

func (s *txSQLiteStore) GetOperationByClientRequestID(ctx context.Context, subscription, clientRequestID string) (*Operation, error) {
	return getOperationByClientRequestID(ctx, s.tx, subscription, clientRequestID)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Hosted Services
// =============================================================================

type hostedServiceRow struct {
	Subscription  string `db:"subscription"`
	Name          string `db:"name"`
	Label         string `db:"label"`
	Description   string `db:"description"`
	Location      string `db:"location"`
	AffinityGroup string `db:"affinity_group"`
	Status        string `db:"status"`
	CreatedAt     string `db:"created_at"`
}

func createHostedService(ctx context.Context, exec executor, svc *HostedService) error {
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	if svc.Status == "" {
		svc.Status = "Created"
	}

	query := `
		INSERT INTO hosted_services (
			subscription, name, label, description, location, affinity_group, status, created_at
		) VALUES (
			:subscription, :name, :label, :description, :location, :affinity_group, :status, :created_at
		)`

	row := hostedServiceRow{
		Subscription:  svc.Subscription,
		Name:          svc.Name,
		Label:         svc.Label,
		Description:   svc.Description,
		Location:      svc.Location,
		AffinityGroup: svc.AffinityGroup,
		Status:        svc.Status,
		CreatedAt:     svc.CreatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateHostedService", "hosted_service", svc.Name, "hosted service already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateHostedService", "hosted_service", svc.Name, err.Error(), err)
	}
	return nil
}

func getHostedService(ctx context.Context, exec executor, subscription, name string) (*HostedService, error) {
	query := `SELECT * FROM hosted_services WHERE subscription = ? AND name = ?`

	var row hostedServiceRow
	err := exec.GetContext(ctx, &row, query, subscription, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetHostedService", "hosted_service", name, "hosted service not found", ErrNotFound)
		}
		return nil, NewStoreError("GetHostedService", "hosted_service", name, err.Error(), err)
	}
	return rowToHostedService(&row), nil
}

func listHostedServices(ctx context.Context, exec executor, subscription string, opts ListOptions) ([]HostedService, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM hosted_services WHERE subscription = ? ORDER BY name LIMIT ? OFFSET ?`

	var rows []hostedServiceRow
	if err := exec.SelectContext(ctx, &rows, query, subscription, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListHostedServices", "hosted_service", "", err.Error(), err)
	}

	services := make([]HostedService, 0, len(rows))
	for i := range rows {
		services = append(services, *rowToHostedService(&rows[i]))
	}
	return services, nil
}

func rowToHostedService(row *hostedServiceRow) *HostedService {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	return &HostedService{
		Subscription:  row.Subscription,
		Name:          row.Name,
		Label:         row.Label,
		Description:   row.Description,
		Location:      row.Location,
		AffinityGroup: row.AffinityGroup,
		Status:        row.Status,
		CreatedAt:     createdAt,
	}
}

// =============================================================================
// Storage Accounts
// =============================================================================

type storageAccountRow struct {
	Subscription  string `db:"subscription"`
	Name          string `db:"name"`
	Label         string `db:"label"`
	Location      string `db:"location"`
	AffinityGroup string `db:"affinity_group"`
	Status        string `db:"status"`
	AccessKey     string `db:"access_key"`
	SecretKey     string `db:"secret_key"`
	CreatedAt     string `db:"created_at"`
}

func createStorageAccount(ctx context.Context, exec executor, acct *StorageAccount) error {
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	if acct.Status == "" {
		acct.Status = "Created"
	}

	query := `
		INSERT INTO storage_accounts (
			subscription, name, label, location, affinity_group, status, access_key, secret_key, created_at
		) VALUES (
			:subscription, :name, :label, :location, :affinity_group, :status, :access_key, :secret_key, :created_at
		)`

	row := storageAccountRow{
		Subscription:  acct.Subscription,
		Name:          acct.Name,
		Label:         acct.Label,
		Location:      acct.Location,
		AffinityGroup: acct.AffinityGroup,
		Status:        acct.Status,
		AccessKey:     acct.AccessKey,
		SecretKey:     acct.SecretKey,
		CreatedAt:     acct.CreatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateStorageAccount", "storage_account", acct.Name, "storage account already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateStorageAccount", "storage_account", acct.Name, err.Error(), err)
	}
	return nil
}

func getStorageAccount(ctx context.Context, exec executor, subscription, name string) (*StorageAccount, error) {
	query := `SELECT * FROM storage_accounts WHERE subscription = ? AND name = ?`

	var row storageAccountRow
	err := exec.GetContext(ctx, &row, query, subscription, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetStorageAccount", "storage_account", name, "storage account not found", ErrNotFound)
		}
		return nil, NewStoreError("GetStorageAccount", "storage_account", name, err.Error(), err)
	}

	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	return &StorageAccount{
		Subscription:  row.Subscription,
		Name:          row.Name,
		Label:         row.Label,
		Location:      row.Location,
		AffinityGroup: row.AffinityGroup,
		Status:        row.Status,
		AccessKey:     row.AccessKey,
		SecretKey:     row.SecretKey,
		CreatedAt:     createdAt,
	}, nil
}

// =============================================================================
// Certificates
// =============================================================================

type certificateRow struct {
	Subscription string `db:"subscription"`
	Service      string `db:"service"`
	Thumbprint   string `db:"thumbprint"`
	Algorithm    string `db:"algorithm"`
	Format       string `db:"format"`
	Data         []byte `db:"data"`
	CreatedAt    string `db:"created_at"`
}

func addCertificate(ctx context.Context, exec executor, cert *Certificate) error {
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO certificates (
			subscription, service, thumbprint, algorithm, format, data, created_at
		) VALUES (
			:subscription, :service, :thumbprint, :algorithm, :format, :data, :created_at
		) ON CONFLICT (subscription, service, thumbprint) DO NOTHING`

	row := certificateRow{
		Subscription: cert.Subscription,
		Service:      cert.Service,
		Thumbprint:   cert.Thumbprint,
		Algorithm:    cert.Algorithm,
		Format:       cert.Format,
		Data:         cert.Data,
		CreatedAt:    cert.CreatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AddCertificate", "certificate", cert.Thumbprint, "hosted service not found", ErrForeignKey)
		}
		return NewStoreError("AddCertificate", "certificate", cert.Thumbprint, err.Error(), err)
	}
	return nil
}

func listCertificates(ctx context.Context, exec executor, subscription, service string) ([]Certificate, error) {
	query := `SELECT * FROM certificates WHERE subscription = ? AND service = ? ORDER BY created_at, thumbprint`

	var rows []certificateRow
	if err := exec.SelectContext(ctx, &rows, query, subscription, service); err != nil {
		return nil, NewStoreError("ListCertificates", "certificate", "", err.Error(), err)
	}

	certs := make([]Certificate, 0, len(rows))
	for _, row := range rows {
		createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
		certs = append(certs, Certificate{
			Subscription: row.Subscription,
			Service:      row.Service,
			Thumbprint:   row.Thumbprint,
			Algorithm:    row.Algorithm,
			Format:       row.Format,
			Data:         row.Data,
			CreatedAt:    createdAt,
		})
	}
	return certs, nil
}

// =============================================================================
// Extensions
// =============================================================================

type extensionRow struct {
	Subscription         string `db:"subscription"`
	Service              string `db:"service"`
	ID                   string `db:"id"`
	ProviderNamespace    string `db:"provider_namespace"`
	Type                 string `db:"type"`
	Version              string `db:"version"`
	Thumbprint           string `db:"thumbprint"`
	PublicConfiguration  string `db:"public_configuration"`
	PrivateConfiguration string `db:"private_configuration"`
	CreatedAt            string `db:"created_at"`
}

func addExtension(ctx context.Context, exec executor, ext *Extension) error {
	if ext.CreatedAt.IsZero() {
		ext.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO extensions (
			subscription, service, id, provider_namespace, type, version, thumbprint,
			public_configuration, private_configuration, created_at
		) VALUES (
			:subscription, :service, :id, :provider_namespace, :type, :version, :thumbprint,
			:public_configuration, :private_configuration, :created_at
		)`

	row := extensionRow{
		Subscription:         ext.Subscription,
		Service:              ext.Service,
		ID:                   ext.ID,
		ProviderNamespace:    ext.ProviderNamespace,
		Type:                 ext.Type,
		Version:              ext.Version,
		Thumbprint:           ext.Thumbprint,
		PublicConfiguration:  ext.PublicConfiguration,
		PrivateConfiguration: ext.PrivateConfiguration,
		CreatedAt:            ext.CreatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("AddExtension", "extension", ext.ID, "extension already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AddExtension", "extension", ext.ID, "hosted service not found", ErrForeignKey)
		}
		return NewStoreError("AddExtension", "extension", ext.ID, err.Error(), err)
	}
	return nil
}

func getExtension(ctx context.Context, exec executor, subscription, service, id string) (*Extension, error) {
	query := `SELECT * FROM extensions WHERE subscription = ? AND service = ? AND id = ?`

	var row extensionRow
	err := exec.GetContext(ctx, &row, query, subscription, service, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetExtension", "extension", id, "extension not found", ErrNotFound)
		}
		return nil, NewStoreError("GetExtension", "extension", id, err.Error(), err)
	}

	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	return &Extension{
		Subscription:         row.Subscription,
		Service:              row.Service,
		ID:                   row.ID,
		ProviderNamespace:    row.ProviderNamespace,
		Type:                 row.Type,
		Version:              row.Version,
		Thumbprint:           row.Thumbprint,
		PublicConfiguration:  row.PublicConfiguration,
		PrivateConfiguration: row.PrivateConfiguration,
		CreatedAt:            createdAt,
	}, nil
}

// =============================================================================
// Deployments
// =============================================================================

// deploymentRow represents a deployment row in the database.
type deploymentRow struct {
	Subscription  string `db:"subscription"`
	Service       string `db:"service"`
	Slot          string `db:"slot"`
	Name          string `db:"name"`
	Label         string `db:"label"`
	PackageURL    string `db:"package_url"`
	Configuration []byte `db:"configuration"`
	Status        string `db:"status"`
	RoleInstances string `db:"role_instances"`
	ExtensionIDs  string `db:"extension_ids"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func deploymentKey(subscription, service string, slot domain.Slot) string {
	return subscription + "/" + service + "/" + string(slot)
}

func deploymentToRow(op string, d *Deployment) (*deploymentRow, error) {
	key := deploymentKey(d.Subscription, d.Service, d.Slot)

	instances := d.RoleInstances
	if instances == nil {
		instances = []domain.RoleInstance{}
	}
	instancesJSON, err := json.Marshal(instances)
	if err != nil {
		return nil, NewStoreError(op, "deployment", key, "failed to serialize role instances", ErrInvalidData)
	}
	ext := d.ExtensionIDs
	if ext == nil {
		ext = []string{}
	}
	extJSON, err := json.Marshal(ext)
	if err != nil {
		return nil, NewStoreError(op, "deployment", key, "failed to serialize extension IDs", ErrInvalidData)
	}

	return &deploymentRow{
		Subscription:  d.Subscription,
		Service:       d.Service,
		Slot:          string(d.Slot),
		Name:          d.Name,
		Label:         d.Label,
		PackageURL:    d.PackageURL,
		Configuration: d.Configuration,
		Status:        string(d.Status),
		RoleInstances: string(instancesJSON),
		ExtensionIDs:  string(extJSON),
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     d.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func createDeployment(ctx context.Context, exec executor, d *Deployment) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	row, err := deploymentToRow("CreateDeployment", d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO deployments (
			subscription, service, slot, name, label, package_url, configuration,
			status, role_instances, extension_ids, created_at, updated_at
		) VALUES (
			:subscription, :service, :slot, :name, :label, :package_url, :configuration,
			:status, :role_instances, :extension_ids, :created_at, :updated_at
		)`

	key := deploymentKey(d.Subscription, d.Service, d.Slot)
	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateDeployment", "deployment", key, "slot is already occupied", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateDeployment", "deployment", key, "hosted service not found", ErrForeignKey)
		}
		return NewStoreError("CreateDeployment", "deployment", key, err.Error(), err)
	}
	return nil
}

func getDeployment(ctx context.Context, exec executor, subscription, service string, slot domain.Slot) (*Deployment, error) {
	query := `SELECT * FROM deployments WHERE subscription = ? AND service = ? AND slot = ?`

	key := deploymentKey(subscription, service, slot)
	var row deploymentRow
	if err := exec.GetContext(ctx, &row, query, subscription, service, string(slot)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", "deployment", key, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", "deployment", key, err.Error(), err)
	}
	return rowToDeployment(&row)
}

func updateDeployment(ctx context.Context, exec executor, d *Deployment) error {
	d.UpdatedAt = time.Now().UTC()

	row, err := deploymentToRow("UpdateDeployment", d)
	if err != nil {
		return err
	}

	query := `
		UPDATE deployments SET
			name = :name,
			label = :label,
			package_url = :package_url,
			configuration = :configuration,
			status = :status,
			role_instances = :role_instances,
			extension_ids = :extension_ids,
			updated_at = :updated_at
		WHERE subscription = :subscription AND service = :service AND slot = :slot`

	key := deploymentKey(d.Subscription, d.Service, d.Slot)
	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", key, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateDeployment", "deployment", key, "deployment not found", ErrNotFound)
	}
	return nil
}

func deleteDeployment(ctx context.Context, exec executor, subscription, service string, slot domain.Slot) error {
	query := `DELETE FROM deployments WHERE subscription = ? AND service = ? AND slot = ?`

	key := deploymentKey(subscription, service, slot)
	result, err := exec.ExecContext(ctx, query, subscription, service, string(slot))
	if err != nil {
		return NewStoreError("DeleteDeployment", "deployment", key, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteDeployment", "deployment", key, "deployment not found", ErrNotFound)
	}
	return nil
}

func rowToDeployment(row *deploymentRow) (*Deployment, error) {
	key := deploymentKey(row.Subscription, row.Service, domain.Slot(row.Slot))

	var instances []domain.RoleInstance
	if err := json.Unmarshal([]byte(row.RoleInstances), &instances); err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", key, "failed to parse role instances", ErrInvalidData)
	}
	var ext []string
	if err := json.Unmarshal([]byte(row.ExtensionIDs), &ext); err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", key, "failed to parse extension IDs", ErrInvalidData)
	}
	if len(ext) == 0 {
		ext = nil
	}

	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	return &Deployment{
		Subscription:  row.Subscription,
		Service:       row.Service,
		Slot:          domain.Slot(row.Slot),
		Name:          row.Name,
		Label:         row.Label,
		PackageURL:    row.PackageURL,
		Configuration: row.Configuration,
		Status:        domain.DeploymentStatus(row.Status),
		RoleInstances: instances,
		ExtensionIDs:  ext,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// =============================================================================
// Operations
// =============================================================================

type operationRow struct {
	ID              string `db:"id"`
	Subscription    string `db:"subscription"`
	Status          string `db:"status"`
	HTTPStatus      int    `db:"http_status"`
	ErrorCode       string `db:"error_code"`
	ErrorMessage    string `db:"error_message"`
	CreatedAt       string `db:"created_at"`
	ClientRequestID string `db:"client_request_id"`
}

func createOperation(ctx context.Context, exec executor, op *Operation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO operations (
			id, subscription, status, http_status, error_code, error_message, created_at,
			client_request_id
		) VALUES (
			:id, :subscription, :status, :http_status, :error_code, :error_message, :created_at,
			:client_request_id
		)`

	row := operationRow{
		ID:              op.ID,
		Subscription:    op.Subscription,
		Status:          op.Status,
		HTTPStatus:      op.HTTPStatus,
		ErrorCode:       op.ErrorCode,
		ErrorMessage:    op.ErrorMessage,
		CreatedAt:       op.CreatedAt.Format(time.RFC3339),
		ClientRequestID: op.ClientRequestID,
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateOperation", "operation", op.ID, "operation already recorded", ErrDuplicateID)
		}
		return NewStoreError("CreateOperation", "operation", op.ID, err.Error(), err)
	}
	return nil
}

func getOperation(ctx context.Context, exec executor, subscription, id string) (*Operation, error) {
	query := `SELECT * FROM operations WHERE subscription = ? AND id = ?`

	var row operationRow
	if err := exec.GetContext(ctx, &row, query, subscription, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetOperation", "operation", id, "operation not found", ErrNotFound)
		}
		return nil, NewStoreError("GetOperation", "operation", id, err.Error(), err)
	}
	return row.toOperation(), nil
}

func getOperationByClientRequestID(ctx context.Context, exec executor, subscription, clientRequestID string) (*Operation, error) {
	if clientRequestID == "" {
		return nil, NewStoreError("GetOperationByClientRequestID", "operation", "", "client request id is empty", ErrNotFound)
	}
	query := `SELECT * FROM operations WHERE subscription = ? AND client_request_id = ?`

	var row operationRow
	if err := exec.GetContext(ctx, &row, query, subscription, clientRequestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetOperationByClientRequestID", "operation", clientRequestID, "operation not found", ErrNotFound)
		}
		return nil, NewStoreError("GetOperationByClientRequestID", "operation", clientRequestID, err.Error(), err)
	}
	return row.toOperation(), nil
}

func (row operationRow) toOperation() *Operation {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	return &Operation{
		ID:              row.ID,
		Subscription:    row.Subscription,
		Status:          row.Status,
		HTTPStatus:      row.HTTPStatus,
		ErrorCode:       row.ErrorCode,
		ErrorMessage:    row.ErrorMessage,
		CreatedAt:       createdAt,
		ClientRequestID: row.ClientRequestID,
	}
}
