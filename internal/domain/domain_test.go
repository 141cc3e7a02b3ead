package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Alice@Example.COM ", "alice@example.com"},
		{"bob@example.com", "bob@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.in))
		})
	}
}

func TestChannelTypeCheckShape(t *testing.T) {
	pid, tid := uuid.New(), uuid.New()
	tests := []struct {
		name    string
		typ     ChannelType
		project *uuid.UUID
		task    *uuid.UUID
		wantErr bool
	}{
		{"task channel with both", ChannelTypeTaskSpecific, &pid, &tid, false},
		{"task channel missing task", ChannelTypeTaskSpecific, &pid, nil, true},
		{"task channel missing project", ChannelTypeTaskSpecific, nil, &tid, true},
		{"general with project", ChannelTypeProjectGeneral, &pid, nil, false},
		{"general without project", ChannelTypeProjectGeneral, nil, nil, true},
		{"general with task", ChannelTypeProjectGeneral, &pid, &tid, true},
		{"announcements with project", ChannelTypeAnnouncements, &pid, nil, false},
		{"dm without project", ChannelTypePrivateDM, nil, nil, false},
		{"dm with project", ChannelTypePrivateDM, &pid, nil, false},
		{"dm with task", ChannelTypePrivateDM, &pid, &tid, true},
		{"unknown type", ChannelType("VOICE"), &pid, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.CheckShape(tt.project, tt.task)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKindedErrors(t *testing.T) {
	base := NewError(ErrForbidden, "only the project owner can perform this action")
	wrapped := fmt.Errorf("updating project: %w", base)

	assert.True(t, errors.Is(wrapped, ErrForbidden))
	assert.True(t, errors.Is(wrapped, base))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "only the project owner can perform this action", PublicMessage(wrapped))
	assert.Empty(t, PublicMessage(errors.New("boom")))
}

func TestRolePredicates(t *testing.T) {
	assert.True(t, ProjectRoleOwner.CanManage())
	assert.True(t, ProjectRoleManager.CanManage())
	assert.False(t, ProjectRoleMember.CanManage())
	assert.False(t, ProjectRole("ADMIN").IsValid())
	assert.True(t, ChannelTypeAnnouncements.IsProjectDefault())
	assert.False(t, ChannelTypeTaskSpecific.IsProjectDefault())
	assert.False(t, TaskStatus("BLOCKED").IsValid())
}
