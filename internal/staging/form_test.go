package staging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeper-notes/internal/model"
)

// countingSpool хранит данные в памяти и считает освобождения
type countingSpool struct {
	mu       sync.Mutex
	handles  []*memHandle
	stageErr error
}

type memHandle struct {
	data []byte

	mu       sync.Mutex
	releases int
}

func (h *memHandle) Open() (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.releases > 0 {
		return nil, ErrReleased
	}
	return io.NopCloser(bytes.NewReader(h.data)), nil
}

func (h *memHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releases++
	if h.releases > 1 {
		return ErrReleased
	}
	return nil
}

func (s *countingSpool) Stage(name string, r io.Reader, limit int64) (Handle, error) {
	if s.stageErr != nil {
		return nil, s.stageErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	h := &memHandle{data: data}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

// releases возвращает число освобождений каждого handle
func (s *countingSpool) releases() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.handles))
	for i, h := range s.handles {
		h.mu.Lock()
		out[i] = h.releases
		h.mu.Unlock()
	}
	return out
}

type creatorFunc func(ctx context.Context, draft model.Draft) (model.Note, error)

func (f creatorFunc) Create(ctx context.Context, draft model.Draft) (model.Note, error) {
	return f(ctx, draft)
}

type updaterFunc func(ctx context.Context, id string, patch model.NotePatch) (model.Note, error)

func (f updaterFunc) Update(ctx context.Context, id string, patch model.NotePatch) (model.Note, error) {
	return f(ctx, id, patch)
}

func addImage(t *testing.T, f *Form, name, data string) string {
	t.Helper()
	id, err := f.AddImage(name, int64(len(data)), strings.NewReader(data))
	require.NoError(t, err)
	return id
}

func TestForm_AddImageValidation(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		size    int64
		wantErr error
	}{
		{name: "png accepted", file: "cat.png", size: 10},
		{name: "upper case extension", file: "CAT.JPEG", size: 10},
		{name: "webp accepted", file: "a.webp", size: 10},
		{name: "pdf rejected", file: "doc.pdf", size: 10, wantErr: ErrInvalidType},
		{name: "no extension", file: "image", size: 10, wantErr: ErrInvalidType},
		{name: "too large", file: "big.png", size: 5<<20 + 1, wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spool := &countingSpool{}
			f := NewForm(spool)

			_, err := f.AddImage(tt.file, tt.size, strings.NewReader("data"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, spool.handles, "Expected rejected file not to be spooled")
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, 1, f.Staged())
		})
	}
}

func TestForm_AddImageMaxFiles(t *testing.T) {
	f := NewForm(&countingSpool{}, WithLimits(Limits{MaxFiles: 2}))

	addImage(t, f, "1.png", "a")
	addImage(t, f, "2.png", "b")

	_, err := f.AddImage("3.png", 1, strings.NewReader("c"))
	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.Equal(t, 2, f.Staged())
}

func TestForm_AddImageSpoolErrorIsReturned(t *testing.T) {
	f := NewForm(&countingSpool{stageErr: ErrFileTooLarge})

	_, err := f.AddImage("lie.png", 1, strings.NewReader("much more than one byte"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Empty(t, f.Images())
}

func TestForm_RemoveImageReleasesHandle(t *testing.T) {
	spool := &countingSpool{}
	f := NewForm(spool)

	first := addImage(t, f, "1.png", "a")
	second := addImage(t, f, "2.png", "b")

	require.NoError(t, f.RemoveImage(first))
	assert.Equal(t, []string{second}, f.Images())
	assert.Equal(t, []int{1, 0}, spool.releases())

	assert.ErrorIs(t, f.RemoveImage(first), ErrImageNotFound)
	assert.Equal(t, []int{1, 0}, spool.releases(), "Expected no second release")
}

func TestForm_SubmitEmptyFormIsRejectedLocally(t *testing.T) {
	f := NewForm(&countingSpool{})
	f.SetTitle("   ")
	f.SetContent("\n")

	called := false
	_, err := f.SubmitCreate(context.Background(), creatorFunc(func(ctx context.Context, d model.Draft) (model.Note, error) {
		called = true
		return model.Note{}, nil
	}))

	assert.ErrorIs(t, err, ErrEmptyNote)
	assert.False(t, called, "Expected no remote call for an empty form")
}

func TestForm_SubmitCreateEncodesImagesAndReleases(t *testing.T) {
	spool := &countingSpool{}
	f := NewForm(spool)
	f.SetTitle("Trip")
	f.SetDrawing("data:image/png;base64,DRAW")
	addImage(t, f, "a.png", "first")
	addImage(t, f, "b.jpg", "second")

	var got model.Draft
	note, err := f.SubmitCreate(context.Background(), creatorFunc(func(ctx context.Context, d model.Draft) (model.Note, error) {
		got = d
		return model.Note{ID: "n1", Title: d.Title}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "n1", note.ID)

	require.Len(t, got.Images, 2)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("first")), got.Images[0].Data)
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("second")), got.Images[1].Data)
	assert.Equal(t, "a.png", got.Images[0].Name)
	assert.Equal(t, "data:image/png;base64,DRAW", got.Drawing)

	assert.Equal(t, []int{1, 1}, spool.releases())
	assert.True(t, f.IsEmpty(), "Expected form to be cleared after success")

	f.Cancel()
	assert.Equal(t, []int{1, 1}, spool.releases(), "Expected each handle to be released once")
}

func TestForm_SubmitFailureKeepsStagedImages(t *testing.T) {
	spool := &countingSpool{}
	f := NewForm(spool)
	f.SetContent("retry me")
	id := addImage(t, f, "a.png", "x")

	failing := creatorFunc(func(ctx context.Context, d model.Draft) (model.Note, error) {
		return model.Note{}, errors.New("Failed to create note")
	})
	_, err := f.SubmitCreate(context.Background(), failing)
	require.Error(t, err)

	assert.Equal(t, []int{0}, spool.releases())
	assert.Equal(t, []string{id}, f.Images())

	// Повторная попытка использует те же данные
	_, err = f.SubmitCreate(context.Background(), creatorFunc(func(ctx context.Context, d model.Draft) (model.Note, error) {
		assert.Equal(t, "retry me", d.Content)
		require.Len(t, d.Images, 1)
		return model.Note{ID: "n"}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, spool.releases())
}

func TestForm_CancelReleasesEverything(t *testing.T) {
	spool := &countingSpool{}
	f := NewForm(spool)
	addImage(t, f, "a.png", "x")
	addImage(t, f, "b.gif", "y")

	f.Cancel()
	f.Cancel()

	assert.Equal(t, []int{1, 1}, spool.releases())
	assert.Empty(t, f.Images())
}

func TestForm_SubmitUpdateKeepsRemoteImages(t *testing.T) {
	spool := &countingSpool{}
	note := model.Note{
		ID:      "n1",
		Title:   "Old",
		Content: "body",
		Images:  []model.Image{{ID: "r1", URL: "https://cdn.example/r1.png"}},
		Drawing: "data:image/png;base64,OLD",
	}
	f := EditForm(note, spool)
	f.SetTitle("  ")
	f.ClearDrawing()
	addImage(t, f, "new.webp", "z")

	var patch model.NotePatch
	_, err := f.SubmitUpdate(context.Background(), updaterFunc(func(ctx context.Context, id string, p model.NotePatch) (model.Note, error) {
		assert.Equal(t, "n1", id)
		patch = p
		return model.Note{ID: id}, nil
	}), "n1")
	require.NoError(t, err)

	require.NotNil(t, patch.Title)
	assert.Equal(t, model.DefaultTitle, *patch.Title)
	require.NotNil(t, patch.Drawing)
	assert.Empty(t, *patch.Drawing, "Expected cleared drawing to be sent")
	require.NotNil(t, patch.Images)
	images := *patch.Images
	require.Len(t, images, 2)
	assert.Equal(t, "https://cdn.example/r1.png", images[0].URL)
	assert.Equal(t, "data:image/webp;base64,"+base64.StdEncoding.EncodeToString([]byte("z")), images[1].Data)

	assert.Equal(t, []int{1}, spool.releases())
}

func TestForm_RemoveRemoteImage(t *testing.T) {
	f := EditForm(model.Note{ID: "n", Images: []model.Image{{ID: "r1"}, {ID: "r2"}}}, &countingSpool{})

	require.NoError(t, f.RemoveImage("r1"))
	assert.Equal(t, []string{"r2"}, f.Images())
}

func TestFileSpool_StageAndRelease(t *testing.T) {
	fs := afero.NewMemMapFs()
	spool := NewFileSpool(fs, "/tmp/keeper")

	h, err := spool.Stage("photo.png", strings.NewReader("pixels"), 100)
	require.NoError(t, err)

	rc, err := h.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "pixels", string(data))

	files, err := afero.ReadDir(fs, "/tmp/keeper")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name(), ".png"))

	require.NoError(t, h.Release())
	assert.ErrorIs(t, h.Release(), ErrReleased)
	_, err = h.Open()
	assert.ErrorIs(t, err, ErrReleased)

	files, err = afero.ReadDir(fs, "/tmp/keeper")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileSpool_RejectsOversizedStream(t *testing.T) {
	fs := afero.NewMemMapFs()
	spool := NewFileSpool(fs, "/spool")

	_, err := spool.Stage("big.png", strings.NewReader("0123456789"), 4)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	files, err := afero.ReadDir(fs, "/spool")
	require.NoError(t, err)
	assert.Empty(t, files, "Expected partial file to be removed")
}

func TestDataURL(t *testing.T) {
	url, err := DataURL("sketch.PNG", []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AQI=", url)

	_, err = DataURL("sketch.bmp", []byte{0x01})
	assert.ErrorIs(t, err, ErrInvalidType)
}
