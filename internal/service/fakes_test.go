package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"classdoc-go/internal/config"
	"classdoc-go/internal/model"
	"classdoc-go/internal/service"
	"classdoc-go/pkg/evaluation"
	"classdoc-go/pkg/indexing"
	"classdoc-go/pkg/storage"
	"classdoc-go/pkg/tasks"

	"gorm.io/gorm"
)

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

var testLayout = service.Layout{
	TeacherBucket: "teacher-resources",
	StudentBucket: "student-submissions",
	PresignExpiry: time.Hour,
}

var testUploadConfig = config.UploadConfig{
	MaxFileSize:  5 * 1024 * 1024,
	AllowedTypes: []string{"application/pdf"},
	LockTTL:      time.Minute,
	LockWait:     0,
}

// fakeBlobStore 是内存中的对象存储。
type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	removeErr map[string]error
	listErr   error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}, removeErr: map[string]error{}}
}

func (f *fakeBlobStore) seed(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = data
}

func (f *fakeBlobStore) has(bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+key]
	return ok
}

func (f *fakeBlobStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[bucket+"/"+key]; ok {
		return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrObjectExists)
	}
	f.puts++
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeBlobStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeBlobStore) List(_ context.Context, bucket, prefix string) ([]storage.Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Object
	for full, data := range f.objects {
		b, key, _ := strings.Cut(full, "/")
		if b == bucket && strings.HasPrefix(key, prefix) {
			out = append(out, storage.Object{Key: key, Size: int64(len(data)), LastModified: time.Now()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeBlobStore) Remove(_ context.Context, bucket, key string) error {
	if err := f.removeErr[key]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeBlobStore) RemoveMany(ctx context.Context, bucket string, keys []string) map[string]error {
	failed := map[string]error{}
	for _, key := range keys {
		if err := f.Remove(ctx, bucket, key); err != nil {
			failed[key] = err
		}
	}
	return failed
}

func (f *fakeBlobStore) PresignedURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	if !f.has(bucket, key) {
		return "", storage.ErrObjectNotFound
	}
	return "http://minio.local/" + bucket + "/" + key + "?X-Amz-Signature=test", nil
}

// fakeIndexer 记录调用次数，Submit 成功后文档变为已处理。
type fakeIndexer struct {
	mu          sync.Mutex
	processed   map[string]bool
	statusCalls map[string]int
	submits     []indexing.SubmitRequest
	deleted     []string
	queries     []indexing.QueryRequest
	compares    []indexing.CompareRequest
	statusErr   error
	submitErr   error
	deleteErr   error
	compareErr  error
}

func newFakeIndexer(processed ...string) *fakeIndexer {
	f := &fakeIndexer{processed: map[string]bool{}, statusCalls: map[string]int{}}
	for _, name := range processed {
		f.processed[name] = true
	}
	return f
}

func (f *fakeIndexer) Status(_ context.Context, name string) (*indexing.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls[name]++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &indexing.StatusResponse{IsProcessed: f.processed[name]}, nil
}

func (f *fakeIndexer) Submit(_ context.Context, req indexing.SubmitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)
	if f.submitErr != nil {
		return f.submitErr
	}
	f.processed[req.FileName] = true
	return nil
}

func (f *fakeIndexer) Query(_ context.Context, req indexing.QueryRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req)
	return "answer to " + req.Question, nil
}

func (f *fakeIndexer) Compare(_ context.Context, req indexing.CompareRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compares = append(f.compares, req)
	if f.compareErr != nil {
		return "", f.compareErr
	}
	return "comparison of " + req.TeacherFile + " and " + req.StudentFile, nil
}

func (f *fakeIndexer) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	delete(f.processed, name)
	return nil
}

func (f *fakeIndexer) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

// fakeSubmissions 是内存中的作业记录表。
type fakeSubmissions struct {
	mu        sync.Mutex
	rows      map[string]*model.StudentSubmission
	createErr error
	deleteErr error
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{rows: map[string]*model.StudentSubmission{}}
}

func (f *fakeSubmissions) Create(record *model.StudentSubmission) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[record.ClassID+"/"+record.FileName] = record
	return nil
}

func (f *fakeSubmissions) UpdateStatus(classID, fileName, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[classID+"/"+fileName]; ok {
		r.Status = status
	}
	return nil
}

func (f *fakeSubmissions) Delete(classID, fileName string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, classID+"/"+fileName)
	return nil
}

func (f *fakeSubmissions) DeleteByClass(classID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, r := range f.rows {
		if r.ClassID == classID {
			delete(f.rows, k)
		}
	}
	return nil
}

// fakeLocks 是单进程内的按键互斥锁。
type fakeLocks struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: map[string]string{}}
}

func (f *fakeLocks) TryAcquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	f.seq++
	token := fmt.Sprintf("token-%d", f.seq)
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocks) Release(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	return nil
}

// fakeEvaluator 按学生文件 ID 返回预设的结果。
type fakeEvaluator struct {
	mu        sync.Mutex
	responses map[string]*evaluation.Response
	errs      map[string]error
	requests  []evaluation.Request
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{responses: map[string]*evaluation.Response{}, errs: map[string]error{}}
}

func (f *fakeEvaluator) score(id string, total float64) {
	f.responses[id] = &evaluation.Response{
		Success: true,
		Evaluation: &model.EvaluationResult{
			TotalScore: total,
			Scores:     map[string]float64{"content_accuracy": total * 0.4, "completeness": total * 0.3},
			Feedback:   "feedback for " + id,
		},
	}
}

func (f *fakeEvaluator) EvaluateAnswer(_ context.Context, req evaluation.Request) (*evaluation.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.errs[req.StudentFileID]; err != nil {
		return nil, err
	}
	if resp, ok := f.responses[req.StudentFileID]; ok {
		return resp, nil
	}
	return &evaluation.Response{Success: false, Error: "student document not found"}, nil
}

// fakeEvaluations 是内存中的评分记录表。
type fakeEvaluations struct {
	mu      sync.Mutex
	records []model.EvaluationRecord
}

func (f *fakeEvaluations) ReplaceRun(classID, referenceFile, questionHash string, records []*model.EvaluationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, r := range f.records {
		if !(r.ClassID == classID && r.ReferenceFile == referenceFile && r.QuestionHash == questionHash) {
			kept = append(kept, r)
		}
	}
	for _, r := range records {
		kept = append(kept, *r)
	}
	f.records = kept
	return nil
}

func (f *fakeEvaluations) FindByReference(classID, referenceFile string) ([]model.EvaluationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.EvaluationRecord
	for _, r := range f.records {
		if r.ClassID == classID && r.ReferenceFile == referenceFile {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEvaluations) DeleteByClass(classID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	for _, r := range f.records {
		if r.ClassID != classID {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

// fakeClasses 是内存中的班级表。
type fakeClasses struct {
	rows      map[uint]*model.Class
	nextID    uint
	deleteErr error
}

func newFakeClasses() *fakeClasses {
	return &fakeClasses{rows: map[uint]*model.Class{}, nextID: 1}
}

func (f *fakeClasses) Create(class *model.Class) error {
	class.ID = f.nextID
	f.nextID++
	f.rows[class.ID] = class
	return nil
}

func (f *fakeClasses) FindAll() ([]model.Class, error) {
	var out []model.Class
	for _, c := range f.rows {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeClasses) FindByID(classID uint) (*model.Class, error) {
	c, ok := f.rows[classID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeClasses) Delete(classID uint) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, classID)
	return nil
}

// fakeSessions 是内存中的会话存储。
type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]model.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]model.Session{}}
}

func (f *fakeSessions) Get(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return &model.Session{ID: id}, nil
	}
	return &s, nil
}

func (f *fakeSessions) Save(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = *s
	return nil
}

// fakePublisher 收集发布的评分记录任务。
type fakePublisher struct {
	mu    sync.Mutex
	tasks []tasks.EvaluationRecordTask
	err   error
}

func (f *fakePublisher) PublishEvaluationRecord(_ context.Context, task tasks.EvaluationRecordTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

var errBoom = errors.New("boom")

func teacherDoc(classID, name string) model.Document {
	return model.Document{OwnerScope: classID, Name: name, Role: model.RoleTeacher}
}

func studentDoc(classID, name string) model.Document {
	return model.Document{OwnerScope: classID, Name: name, Role: model.RoleStudent}
}
