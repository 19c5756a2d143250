//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"vidscribe/internal/domain"
	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/repository"
	"vidscribe/internal/usecase"
)

func TestJobUseCase_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("should store a pending job", func(t *testing.T) {
		repo := NewMockJobRepo()
		uc := usecase.NewJobUseCase(repo, newTestLogger())

		job, err := uc.Submit(ctx, model.JobKindChannel, "  https://www.youtube.com/@somechannel/videos ")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stored := repo.get(job.ID)
		if stored.Status != model.JobStatusPending || stored.SourceURL != "https://www.youtube.com/@somechannel/videos" {
			t.Errorf("unexpected stored job %+v", stored)
		}
	})

	t.Run("should reject an invalid source url", func(t *testing.T) {
		repo := NewMockJobRepo()
		repo.SaveFunc = func(context.Context, repository.Tx, *model.Job) error {
			t.Fatal("save must not be called")
			return nil
		}
		uc := usecase.NewJobUseCase(repo, newTestLogger())
		if _, err := uc.Submit(ctx, model.JobKindSingle, "not a url"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected invalid argument, got %v", err)
		}
	})

	t.Run("should surface storage errors", func(t *testing.T) {
		repo := NewMockJobRepo()
		repo.SaveFunc = func(context.Context, repository.Tx, *model.Job) error { return errors.New("db down") }
		uc := usecase.NewJobUseCase(repo, newTestLogger())
		if _, err := uc.Submit(ctx, model.JobKindSingle, "https://youtu.be/dQw4w9WgXcQ"); err == nil {
			t.Fatal("expected error")
		}
	})
}
