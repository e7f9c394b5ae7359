package queue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"onlinelibrary/internal/util"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ImportJob tracks one catalog reimport request through the queue.
type ImportJob struct {
	ID           string    `json:"id"`
	RequestedBy  string    `json:"requestedBy"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RedisImportQueue is a Redis Streams queue for catalog reimport jobs.
// Jobs are consumed through a consumer group so a crashed worker's pending
// messages are reclaimed.
type RedisImportQueue struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	jobTTL     time.Duration
	maxRetries int
	block      time.Duration
	claimIdle  time.Duration
	once       sync.Once
}

// ImportQueueConfig configures the reimport queue.
type ImportQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
}

// NewRedisImportQueue builds the queue client.
func NewRedisImportQueue(cfg ImportQueueConfig) (*RedisImportQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "library:catalog_import"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "importers"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	return &RedisImportQueue{
		client:     redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:     stream,
		group:      group,
		consumer:   consumer,
		jobTTL:     jobTTL,
		maxRetries: maxRetries,
		block:      block,
		claimIdle:  claimIdle,
	}, nil
}

// Enqueue registers a reimport job and appends it to the stream.
func (q *RedisImportQueue) Enqueue(ctx context.Context, requestedBy string) (ImportJob, error) {
	job := ImportJob{
		ID:          util.NewID(),
		RequestedBy: requestedBy,
		Status:      StatusQueued,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return ImportJob{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]any{
			"job_id":       job.ID,
			"requested_by": job.RequestedBy,
		},
	}).Err(); err != nil {
		return ImportJob{}, err
	}
	return job, nil
}

// GetJob reads the status record of a job.
func (q *RedisImportQueue) GetJob(ctx context.Context, jobID string) (ImportJob, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ImportJob{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return ImportJob{}, false, err
	}
	if len(data) == 0 {
		return ImportJob{}, false, nil
	}
	return decodeImportJob(jobID, data), true, nil
}

// Start launches the consumer loop. The handler runs one reimport.
func (q *RedisImportQueue) Start(ctx context.Context, handler func(context.Context, ImportJob) error) {
	q.ensureGroup(ctx)
	go q.consumeLoop(ctx, handler)
}

func (q *RedisImportQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("create consumer group", "stream", q.stream, "err", err)
		}
	})
}

func (q *RedisImportQueue) consumeLoop(ctx context.Context, handler func(context.Context, ImportJob) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisImportQueue) claimPending(ctx context.Context) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisImportQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, ImportJob) error) {
	jobID, _ := msg.Values["job_id"].(string)
	requestedBy, _ := msg.Values["requested_by"].(string)
	if jobID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, jobID, requestedBy)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if err := handler(ctx, job); err == nil {
		_ = q.markStatus(ctx, jobID, StatusDone, "")
		q.ackAndDel(ctx, msg.ID)
		return
	} else if job.Attempts >= q.maxRetries {
		_ = q.markStatus(ctx, jobID, StatusFailed, err.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	} else {
		_ = q.markStatus(ctx, jobID, StatusQueued, err.Error())
		q.requeueAndAck(ctx, msg.ID, jobID, requestedBy)
	}
}

func (q *RedisImportQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisImportQueue) requeueAndAck(ctx context.Context, msgID, jobID, requestedBy string) {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]any{
			"job_id":       jobID,
			"requested_by": requestedBy,
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, _ = pipe.Exec(ctx)
}

func (q *RedisImportQueue) markProcessing(ctx context.Context, jobID, requestedBy string) (ImportJob, error) {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return ImportJob{}, err
	}
	if job.ID == "" {
		job = ImportJob{ID: jobID, CreatedAt: time.Now().UTC()}
	}
	if requestedBy != "" {
		job.RequestedBy = requestedBy
	}
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if err := q.writeStatus(ctx, job); err != nil {
		return ImportJob{}, err
	}
	return job, nil
}

func (q *RedisImportQueue) markStatus(ctx context.Context, jobID, status, errMsg string) error {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ID == "" {
		job = ImportJob{ID: jobID, CreatedAt: time.Now().UTC()}
	}
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisImportQueue) writeStatus(ctx context.Context, job ImportJob) error {
	payload := map[string]any{
		"id":          job.ID,
		"requestedBy": job.RequestedBy,
		"status":      job.Status,
		"error":       job.ErrorMessage,
		"attempts":    strconv.Itoa(job.Attempts),
		"createdAt":   job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":   job.UpdatedAt.Format(time.RFC3339Nano),
	}
	key := q.jobKey(job.ID)
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *RedisImportQueue) jobKey(jobID string) string {
	return "library:import_job:" + jobID
}

func decodeImportJob(jobID string, data map[string]string) ImportJob {
	attempts, _ := strconv.Atoi(data["attempts"])
	createdAt, _ := time.Parse(time.RFC3339Nano, data["createdAt"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, data["updatedAt"])
	return ImportJob{
		ID:           jobID,
		RequestedBy:  data["requestedBy"],
		Status:       data["status"],
		ErrorMessage: data["error"],
		Attempts:     attempts,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}
