/**
 * MongoDB Client for the OCRR Worker
 *
 * The upload service owns two databases the worker reports into:
 * - upload.fileDetails / upload.webhooks: per-file status and client webhooks
 * - ocrrworkspace.ocrr: tasks currently held in the OCRR workspace
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	fileDetailsCollection = "fileDetails"
	webhooksCollection    = "webhooks"
	workspaceCollection   = "ocrr"
)

// ErrNotFound is returned when a lookup matches no document
var ErrNotFound = errors.New("document not found")

// FileDetails is the upload service's record of one uploaded file
type FileDetails struct {
	TaskID     string `bson:"taskId" json:"taskId"`
	Status     string `bson:"status" json:"status"`
	TaskResult string `bson:"taskResult" json:"taskResult"`
	ClientID   string `bson:"clientId" json:"clientId"`
	UploadDir  string `bson:"uploadDir" json:"uploadDir"`
}

// Webhook is a client's registered status callback
type Webhook struct {
	ClientID string `bson:"clientId"`
	URL      string `bson:"url"`
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI         string
	UploadDB    string
	WorkspaceDB string
}

// MongoClient handles upload and workspace collections
type MongoClient struct {
	client    *mongo.Client
	upload    *mongo.Database
	workspace *mongo.Database
}

// NewMongoClient connects and pings MongoDB
func NewMongoClient(cfg *MongoConfig) (*MongoClient, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, fmt.Errorf("MongoDB URI is required")
	}
	if cfg.UploadDB == "" {
		cfg.UploadDB = "upload"
	}
	if cfg.WorkspaceDB == "" {
		cfg.WorkspaceDB = "ocrrworkspace"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoClient{
		client:    client,
		upload:    client.Database(cfg.UploadDB),
		workspace: client.Database(cfg.WorkspaceDB),
	}, nil
}

// UpdateFileDetails sets status and taskResult on the file record of a task
func (m *MongoClient) UpdateFileDetails(ctx context.Context, taskID, status, message string) error {
	filter := bson.M{"taskId": taskID}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"taskResult": message,
	}}

	res, err := m.upload.Collection(fileDetailsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update file details (task=%s): %w", taskID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("file details for task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// FindFileDetails returns the file record of a task
func (m *MongoClient) FindFileDetails(ctx context.Context, taskID string) (*FileDetails, error) {
	var details FileDetails
	err := m.upload.Collection(fileDetailsCollection).FindOne(ctx, bson.M{"taskId": taskID}).Decode(&details)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("file details for task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file details (task=%s): %w", taskID, err)
	}
	return &details, nil
}

// FindWebhook returns the webhook registered by a client
func (m *MongoClient) FindWebhook(ctx context.Context, clientID string) (*Webhook, error) {
	var hook Webhook
	err := m.upload.Collection(webhooksCollection).FindOne(ctx, bson.M{"clientId": clientID}).Decode(&hook)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("webhook for client %s: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook (client=%s): %w", clientID, err)
	}
	return &hook, nil
}

// DeleteWorkspaceTask removes a finished task from the OCRR workspace.
// Deleting an absent task is not an error.
func (m *MongoClient) DeleteWorkspaceTask(ctx context.Context, taskID string) error {
	if _, err := m.workspace.Collection(workspaceCollection).DeleteOne(ctx, bson.M{"taskId": taskID}); err != nil {
		return fmt.Errorf("failed to remove workspace task %s: %w", taskID, err)
	}
	return nil
}

// CountWorkspaceTasks returns the number of tasks still in the workspace
func (m *MongoClient) CountWorkspaceTasks(ctx context.Context) (int64, error) {
	return m.workspace.Collection(workspaceCollection).CountDocuments(ctx, bson.D{})
}

// Ping checks MongoDB connectivity
func (m *MongoClient) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB
func (m *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
