package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/xaenox/edu-assistant/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (user_id, title, conversation_type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		conv.OwnerID,
		conv.Title,
		conv.ConversationType,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating conversation: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, conversation_type, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.OwnerID,
		&conv.Title,
		&conv.ConversationType,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying conversation: %w", err)
	}

	conv.Messages, err = s.queryMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// listWhere builds the WHERE clause shared by the page and count queries.
func listWhere(filter models.ConversationFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{filter.OwnerID}

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Search != "" {
		add("title ILIKE $%d", "%"+filter.Search+"%")
	}
	if filter.Type != "" {
		add("conversation_type = $%d", string(filter.Type))
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}

	return strings.Join(clauses, " AND "), args
}

func (s *PostgresStorage) ListConversations(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, int, error) {
	where, args := listWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM conversations WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting conversations: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	pageArgs := append(args, limit, filter.Skip)
	query := fmt.Sprintf(`
		SELECT id, user_id, title, conversation_type, created_at, updated_at
		FROM conversations
		WHERE %s
		ORDER BY updated_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		err := rows.Scan(
			&conv.ID,
			&conv.OwnerID,
			&conv.Title,
			&conv.ConversationType,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, total, nil
}

func (s *PostgresStorage) DeleteConversation(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting conversation: %w", err)
	}
	return expectRow(result)
}

func (s *PostgresStorage) UpdateTitle(ctx context.Context, id int64, title string) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET title = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, user_id, title, conversation_type, created_at, updated_at`

	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, query, title, id).Scan(
		&conv.ID,
		&conv.OwnerID,
		&conv.Title,
		&conv.ConversationType,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error updating conversation title: %w", err)
	}
	return conv, nil
}

func (s *PostgresStorage) AddMessage(ctx context.Context, msg *models.StoredMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("error touching conversation: %w", err)
	}
	if err := expectRow(result); err != nil {
		return err
	}

	query := `
		INSERT INTO messages (conversation_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, timestamp`
	err = tx.QueryRowContext(ctx, query, msg.ConversationID, msg.Role, msg.Content).
		Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return fmt.Errorf("error inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing message: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetMessages(ctx context.Context, conversationID int64) ([]models.StoredMessage, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("error checking conversation: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return s.queryMessages(ctx, conversationID)
}

func (s *PostgresStorage) queryMessages(ctx context.Context, conversationID int64) ([]models.StoredMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, timestamp
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.StoredMessage, 0)
	for rows.Next() {
		var msg models.StoredMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
