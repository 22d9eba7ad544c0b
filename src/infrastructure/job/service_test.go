package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"deepsearch/src/core/rag"
	"deepsearch/src/infrastructure/job"
)

type fakeRepo struct {
	nextID   int
	jobs     map[int]*job.Job
	statuses map[int][]job.JobStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID:   1,
		jobs:     make(map[int]*job.Job),
		statuses: make(map[int][]job.JobStatus),
	}
}

func (r *fakeRepo) Create(ctx context.Context, taskType string, payload json.RawMessage) (*job.Job, error) {
	j := &job.Job{
		ID:       r.nextID,
		TaskType: taskType,
		Payload:  payload,
		Status:   job.JobStatusPending,
	}
	r.jobs[j.ID] = j
	r.nextID++
	return j, nil
}

func (r *fakeRepo) Get(ctx context.Context, id int) (*job.Job, error) {
	return r.jobs[id], nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id int, status job.JobStatus, errStr *string) error {
	r.statuses[id] = append(r.statuses[id], status)
	return nil
}

type fakePublisher struct {
	published []*message.Message
}

func (p *fakePublisher) Publish(topic string, messages ...*message.Message) error {
	p.published = append(p.published, messages...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeRagService struct {
	lastReq   *rag.IngestRequest
	ingestErr error
}

func (f *fakeRagService) Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error) {
	f.lastReq = &req
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &rag.IngestResult{ChunksAdded: 3, DocumentsCount: 1}, nil
}

func (f *fakeRagService) Retrieve(ctx context.Context, question string, k int) ([]rag.QueryHit, error) {
	return nil, nil
}

func (f *fakeRagService) DeleteDocument(ctx context.Context, filename string) error {
	return nil
}

func TestEnqueueJobPublishes(t *testing.T) {
	repo := newFakeRepo()
	publisher := &fakePublisher{}
	svc := job.NewJobService(publisher, repo, watermill.NopLogger{}, &fakeRagService{}, "/docs")

	payload, _ := json.Marshal(job.ReindexPayload{Force: true})
	j, err := svc.EnqueueJob(context.Background(), job.TaskTypeReindex, payload)
	if err != nil {
		t.Fatalf("EnqueueJob() error = %v", err)
	}
	if j.Status != job.JobStatusPending {
		t.Errorf("status = %q, want pending", j.Status)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("%d messages published, want 1", len(publisher.published))
	}
	var msg job.JobMessage
	if err := json.Unmarshal(publisher.published[0].Payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.JobID != j.ID || msg.TaskType != job.TaskTypeReindex {
		t.Errorf("message = %+v, want job %d / %s", msg, j.ID, job.TaskTypeReindex)
	}
}

func TestProcessJobMessageReindexes(t *testing.T) {
	repo := newFakeRepo()
	ragSvc := &fakeRagService{}
	svc := job.NewJobService(&fakePublisher{}, repo, watermill.NopLogger{}, ragSvc, "/docs")

	payload, _ := json.Marshal(job.ReindexPayload{Force: true})
	j, _ := repo.Create(context.Background(), job.TaskTypeReindex, payload)

	msgPayload, _ := json.Marshal(job.JobMessage{JobID: j.ID, TaskType: j.TaskType, Payload: j.Payload})
	if err := svc.ProcessJobMessage(message.NewMessage("1", msgPayload)); err != nil {
		t.Fatalf("ProcessJobMessage() error = %v", err)
	}

	if ragSvc.lastReq == nil {
		t.Fatal("reindex did not run")
	}
	if !ragSvc.lastReq.Force || ragSvc.lastReq.Dir != "/docs" {
		t.Errorf("ingest request = %+v, want forced reindex of /docs", ragSvc.lastReq)
	}

	statuses := repo.statuses[j.ID]
	if len(statuses) != 2 || statuses[0] != job.JobStatusRunning || statuses[1] != job.JobStatusCompleted {
		t.Errorf("status transitions = %v, want [running completed]", statuses)
	}
}

func TestProcessJobMessageFailure(t *testing.T) {
	repo := newFakeRepo()
	ragSvc := &fakeRagService{ingestErr: errors.New("index unreachable")}
	svc := job.NewJobService(&fakePublisher{}, repo, watermill.NopLogger{}, ragSvc, "/docs")

	payload, _ := json.Marshal(job.ReindexPayload{})
	j, _ := repo.Create(context.Background(), job.TaskTypeReindex, payload)

	msgPayload, _ := json.Marshal(job.JobMessage{JobID: j.ID, TaskType: j.TaskType, Payload: j.Payload})
	if err := svc.ProcessJobMessage(message.NewMessage("1", msgPayload)); err == nil {
		t.Fatal("ProcessJobMessage() error = nil, want ingest failure")
	}

	statuses := repo.statuses[j.ID]
	if len(statuses) != 2 || statuses[1] != job.JobStatusFailed {
		t.Errorf("status transitions = %v, want failure recorded", statuses)
	}
}

func TestProcessJobMessageUnknownTask(t *testing.T) {
	repo := newFakeRepo()
	svc := job.NewJobService(&fakePublisher{}, repo, watermill.NopLogger{}, &fakeRagService{}, "/docs")

	j, _ := repo.Create(context.Background(), "mystery", nil)
	msgPayload, _ := json.Marshal(job.JobMessage{JobID: j.ID, TaskType: j.TaskType})
	if err := svc.ProcessJobMessage(message.NewMessage("1", msgPayload)); err == nil {
		t.Error("ProcessJobMessage() error = nil, want unknown task error")
	}
}
