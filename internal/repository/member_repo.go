package repository

import (
	"context"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/model"
)

const (
	MembersCollection  = "users"
	ProjectsCollection = "projects"
)

type MemberRepository struct {
	store docstore.Store
}

func NewMemberRepository(store docstore.Store) *MemberRepository {
	return &MemberRepository{store: store}
}

func (r *MemberRepository) Create(ctx context.Context, m model.Member) (model.Member, error) {
	id, err := create(ctx, r.store, MembersCollection, m)
	if err != nil {
		return model.Member{}, err
	}
	m.ID = id
	return m, nil
}

func (r *MemberRepository) FindByID(ctx context.Context, id string) (model.Member, error) {
	return getAs[model.Member](ctx, r.store, MembersCollection, id)
}

func (r *MemberRepository) All(ctx context.Context) ([]model.Member, error) {
	return findAs[model.Member](ctx, r.store, docstore.Collection(MembersCollection).Order("name", docstore.Asc))
}

type ProjectRepository struct {
	store docstore.Store
}

func NewProjectRepository(store docstore.Store) *ProjectRepository {
	return &ProjectRepository{store: store}
}

func (r *ProjectRepository) Create(ctx context.Context, p model.Project) (model.Project, error) {
	id, err := create(ctx, r.store, ProjectsCollection, p)
	if err != nil {
		return model.Project{}, err
	}
	p.ID = id
	return p, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string) (model.Project, error) {
	return getAs[model.Project](ctx, r.store, ProjectsCollection, id)
}

func (r *ProjectRepository) All(ctx context.Context) ([]model.Project, error) {
	return findAs[model.Project](ctx, r.store, docstore.Collection(ProjectsCollection).Order("createdAt", docstore.Desc))
}
