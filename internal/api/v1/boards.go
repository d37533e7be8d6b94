package v1

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

type ListBoardsInput struct{}

type ListBoardsOutput struct {
	Body []*domain.Board
}

type CreateBoardInput struct {
	Body struct {
		Title         string   `json:"title,omitempty" maxLength:"200" doc:"Board title"`
		Collaborators []string `json:"collaborators,omitempty" doc:"User IDs allowed to open the board"`
	}
}

type BoardOutput struct {
	Body *domain.Board
}

type GetBoardInput struct {
	ID string `path:"id" doc:"Board ID"`
}

type UpdateBoardInput struct {
	ID   string `path:"id" doc:"Board ID"`
	Body struct {
		Title         *string   `json:"title,omitempty" minLength:"1" maxLength:"200" doc:"Board title"`
		Collaborators *[]string `json:"collaborators,omitempty" doc:"Replaces the collaborator list"`
	}
}

type DeleteBoardInput struct {
	ID string `path:"id" doc:"Board ID"`
}

type ListObjectsInput struct {
	ID string `path:"id" doc:"Board ID"`
}

type ListObjectsOutput struct {
	Body []*domain.BoardObject
}

func RegisterBoardRoutes(api huma.API, store BoardStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards owned by or shared with the caller",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *ListBoardsInput) (*ListBoardsOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		boards, err := store.FindBoardsByUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}
		if boards == nil {
			boards = []*domain.Board{}
		}

		return &ListBoardsOutput{Body: boards}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-board",
		Method:        http.MethodPost,
		Path:          "/boards",
		Summary:       "Create a board owned by the caller",
		Tags:          []string{"Boards"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateBoardInput) (*BoardOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		title := strings.TrimSpace(input.Body.Title)
		if title == "" {
			title = domain.DefaultBoardTitle
		}
		collaborators := input.Body.Collaborators
		if collaborators == nil {
			collaborators = []string{}
		}

		now := time.Now().UTC()
		b, err := store.CreateBoard(ctx, &domain.Board{
			ID:            uuid.NewString(),
			Title:         title,
			OwnerID:       userID,
			Collaborators: collaborators,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create board", err)
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{id}",
		Summary:     "Get a board by ID",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*BoardOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		b, err := accessibleBoard(ctx, store, input.ID, userID)
		if err != nil {
			return nil, err
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-board",
		Method:      http.MethodPatch,
		Path:        "/boards/{id}",
		Summary:     "Rename a board or replace its collaborators",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *UpdateBoardInput) (*BoardOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		if _, err := ownedBoard(ctx, store, input.ID, userID); err != nil {
			return nil, err
		}

		b, err := store.UpdateBoard(ctx, input.ID, domain.BoardUpdate{
			Title:         input.Body.Title,
			Collaborators: input.Body.Collaborators,
		})
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to update board", err)
		}

		return &BoardOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board",
		Method:      http.MethodDelete,
		Path:        "/boards/{id}",
		Summary:     "Delete a board and all of its objects",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *DeleteBoardInput) (*struct{}, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		if _, err := ownedBoard(ctx, store, input.ID, userID); err != nil {
			return nil, err
		}

		if err := store.DeleteBoard(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("board not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete board", err)
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-board-objects",
		Method:      http.MethodGet,
		Path:        "/boards/{id}/objects",
		Summary:     "List a board's objects in paint order",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListObjectsInput) (*ListObjectsOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		if _, err := accessibleBoard(ctx, store, input.ID, userID); err != nil {
			return nil, err
		}

		objects, err := store.FindObjectsByBoard(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list objects", err)
		}
		if objects == nil {
			objects = []*domain.BoardObject{}
		}
		slices.SortStableFunc(objects, func(a, b *domain.BoardObject) int {
			return cmp.Compare(a.ZIndex, b.ZIndex)
		})

		return &ListObjectsOutput{Body: objects}, nil
	})
}

func requireUser(ctx context.Context) (string, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return "", huma.Error401Unauthorized("missing identity")
	}
	return userID, nil
}

func accessibleBoard(ctx context.Context, store BoardStore, id, userID string) (*domain.Board, error) {
	b, err := store.FindBoardByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("board not found")
		}
		return nil, huma.Error500InternalServerError("failed to get board", err)
	}
	if !b.CanAccess(userID) {
		return nil, huma.Error403Forbidden("no access to this board")
	}
	return b, nil
}

// ownedBoard is accessibleBoard restricted to the owner.
func ownedBoard(ctx context.Context, store BoardStore, id, userID string) (*domain.Board, error) {
	b, err := accessibleBoard(ctx, store, id, userID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != userID {
		return nil, huma.Error403Forbidden("only the owner can change this board")
	}
	return b, nil
}
