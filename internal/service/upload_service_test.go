package service_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/config"
	"classdoc-go/internal/model"
	"classdoc-go/internal/service"
	"classdoc-go/pkg/indexing"

	"github.com/stretchr/testify/require"
)

type uploadFixture struct {
	blobs       *fakeBlobStore
	indexer     *fakeIndexer
	submissions *fakeSubmissions
	locks       *fakeLocks
	svc         service.UploadService
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	f := &uploadFixture{
		blobs:       newFakeBlobStore(),
		indexer:     newFakeIndexer(),
		submissions: newFakeSubmissions(),
		locks:       newFakeLocks(),
	}
	f.svc = service.NewUploadService(f.blobs, f.indexer, f.submissions, f.locks, testLayout, testUploadConfig)
	return f
}

func pdfInput(classID string, role model.Role, name string) service.UploadInput {
	return service.UploadInput{
		ClassID:     classID,
		Role:        role,
		FileName:    name,
		ContentType: "application/pdf",
		Size:        int64(len(pdf)),
		Content:     bytes.NewReader(pdf),
	}
}

func TestUploadTeacherDocumentIsStoredAndIndexed(t *testing.T) {
	// given
	f := newUploadFixture(t)

	// when
	res, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleTeacher, "syllabus.pdf"))

	// then
	require.NoError(t, err)
	require.True(t, res.Indexed)
	require.Equal(t, "7/syllabus.pdf", res.Document.Key())
	require.True(t, f.blobs.has("teacher-resources", "7/syllabus.pdf"))
	require.Equal(t, 1, f.blobs.puts)
	require.Equal(t, 1, f.indexer.statusCalls["syllabus.pdf"])
	require.Equal(t, 1, f.indexer.submitCount())
	require.True(t, f.indexer.submits[0].IsTeacher)
	require.Equal(t, "7", f.indexer.submits[0].ClassID)
	require.Len(t, res.Listing, 1)
	require.Equal(t, "syllabus.pdf", res.Listing[0].Name)
	require.Empty(t, f.locks.held)
}

func TestUploadAlreadyProcessedNameIsNotResubmitted(t *testing.T) {
	// given
	f := newUploadFixture(t)
	f.indexer = newFakeIndexer("syllabus.pdf")
	f.svc = service.NewUploadService(f.blobs, f.indexer, f.submissions, f.locks, testLayout, testUploadConfig)

	// when
	res, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleTeacher, "syllabus.pdf"))

	// then
	require.NoError(t, err)
	require.True(t, res.Indexed)
	require.Equal(t, 1, f.indexer.statusCalls["syllabus.pdf"])
	require.Zero(t, f.indexer.submitCount())
	require.True(t, f.blobs.has("teacher-resources", "7/syllabus.pdf"))
}

func TestUploadCatalogFailureKeepsPreexistingIndexEntry(t *testing.T) {
	// given
	f := newUploadFixture(t)
	f.indexer = newFakeIndexer("alice.pdf")
	f.submissions.createErr = errBoom
	svc := service.NewUploadService(f.blobs, f.indexer, f.submissions, f.locks, testLayout, withStudentIndexing())

	// when
	_, err := svc.Upload(context.Background(), pdfInput("7", model.RoleStudent, "alice.pdf"))

	// then
	require.ErrorIs(t, err, apperr.ErrCatalog)
	require.Zero(t, f.indexer.submitCount())
	require.Empty(t, f.indexer.deleted)
	require.False(t, f.blobs.has("student-submissions", "7/alice.pdf"))
}

func TestUploadStatusFailureRemovesBlob(t *testing.T) {
	// given
	f := newUploadFixture(t)
	f.indexer.statusErr = &indexing.Error{StatusCode: http.StatusServiceUnavailable, Detail: "index offline"}

	// when
	_, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleTeacher, "syllabus.pdf"))

	// then
	require.ErrorIs(t, err, apperr.ErrIndexing)
	require.Zero(t, f.indexer.submitCount())
	require.False(t, f.blobs.has("teacher-resources", "7/syllabus.pdf"))
}

func TestUploadIndexingFailureRemovesBlob(t *testing.T) {
	// given
	f := newUploadFixture(t)
	f.indexer.submitErr = &indexing.Error{StatusCode: http.StatusBadRequest, Detail: "Only PDF files are supported"}

	// when
	_, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleTeacher, "syllabus.pdf"))

	// then
	require.ErrorIs(t, err, apperr.ErrIndexing)
	require.Equal(t, "Only PDF files are supported", apperr.Message(err))
	require.False(t, f.blobs.has("teacher-resources", "7/syllabus.pdf"))
	require.Empty(t, f.locks.held)
}

func TestUploadThenDeleteLeavesClassEmpty(t *testing.T) {
	// given
	f := newUploadFixture(t)
	docs := service.NewDocumentService(f.blobs, f.indexer, f.submissions, testLayout)
	_, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleTeacher, "syllabus.pdf"))
	require.NoError(t, err)

	// when
	res, err := docs.Delete(context.Background(), teacherDoc("7", "syllabus.pdf"), model.Session{})

	// then
	require.NoError(t, err)
	require.Empty(t, res.Listing)
	require.Equal(t, []string{"syllabus.pdf"}, f.indexer.deleted)
	listing, err := docs.List(context.Background(), "7", model.RoleTeacher)
	require.NoError(t, err)
	require.Empty(t, listing)
}

func TestUploadValidationHappensBeforeAnyWrite(t *testing.T) {
	cases := map[string]func(in *service.UploadInput){
		"empty class":      func(in *service.UploadInput) { in.ClassID = "" },
		"wrong mime type":  func(in *service.UploadInput) { in.ContentType = "image/png" },
		"not a pdf":        func(in *service.UploadInput) { in.Content = strings.NewReader("hello world") },
		"path in name":     func(in *service.UploadInput) { in.FileName = "../other/syllabus.pdf" },
		"hidden name":      func(in *service.UploadInput) { in.FileName = ".syllabus.pdf" },
		"declared too big": func(in *service.UploadInput) { in.Size = 6 * 1024 * 1024 },
		"content too big": func(in *service.UploadInput) {
			in.Size = 0
			in.Content = bytes.NewReader(append(append([]byte{}, pdf...), make([]byte, 5*1024*1024)...))
		},
		"unknown role": func(in *service.UploadInput) { in.Role = "admin" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			// given
			f := newUploadFixture(t)
			in := pdfInput("7", model.RoleTeacher, "syllabus.pdf")
			mutate(&in)

			// when
			_, err := f.svc.Upload(context.Background(), in)

			// then
			require.ErrorIs(t, err, apperr.ErrValidation)
			require.Zero(t, f.blobs.puts)
			require.Zero(t, f.indexer.submitCount())
		})
	}
}

func TestUploadDuplicateKeyKeepsExistingObject(t *testing.T) {
	// given
	f := newUploadFixture(t)
	f.blobs.seed("teacher-resources", "7/syllabus.pdf", []byte("%PDF-original"))

	// when
	_, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleTeacher, "syllabus.pdf"))

	// then
	require.ErrorIs(t, err, apperr.ErrBlobWrite)
	data, getErr := f.blobs.Get(context.Background(), "teacher-resources", "7/syllabus.pdf")
	require.NoError(t, getErr)
	require.Equal(t, "%PDF-original", string(data))
	require.Zero(t, f.indexer.submitCount())
}

func TestUploadStudentRecordsSubmissionWithoutIndexing(t *testing.T) {
	// given
	f := newUploadFixture(t)

	// when
	res, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleStudent, "alice.pdf"))

	// then
	require.NoError(t, err)
	require.False(t, res.Indexed)
	require.Zero(t, f.indexer.submitCount())
	require.True(t, f.blobs.has("student-submissions", "7/alice.pdf"))
	row := f.submissions.rows["7/alice.pdf"]
	require.NotNil(t, row)
	require.Equal(t, model.SubmissionUploaded, row.Status)
	require.Equal(t, "7/alice.pdf", row.FilePath)
}

func TestUploadStudentCatalogFailureCompensatesEverything(t *testing.T) {
	// given
	f := newUploadFixture(t)
	f.submissions.createErr = errBoom
	svc := service.NewUploadService(f.blobs, f.indexer, f.submissions, f.locks, testLayout, withStudentIndexing())

	// when
	_, err := svc.Upload(context.Background(), pdfInput("7", model.RoleStudent, "alice.pdf"))

	// then
	require.ErrorIs(t, err, apperr.ErrCatalog)
	require.True(t, errors.Is(err, errBoom))
	require.False(t, f.blobs.has("student-submissions", "7/alice.pdf"))
	require.Equal(t, []string{"alice.pdf"}, f.indexer.deleted)
}

func TestUploadRejectsConcurrentUploadOfSameKey(t *testing.T) {
	// given
	f := newUploadFixture(t)
	_, ok, _ := f.locks.TryAcquire(context.Background(), "teacher-resources/7/syllabus.pdf", 0)
	require.True(t, ok)

	// when
	_, err := f.svc.Upload(context.Background(), pdfInput("7", model.RoleTeacher, "syllabus.pdf"))

	// then
	require.ErrorIs(t, err, apperr.ErrUpload)
	require.Zero(t, f.blobs.puts)
}

func withStudentIndexing() config.UploadConfig {
	cfg := testUploadConfig
	cfg.IndexStudentUploads = true
	return cfg
}
