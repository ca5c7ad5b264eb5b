package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func assignedTicket(agent domain.User, status domain.TicketStatus) domain.Ticket {
	a := agent
	return domain.Ticket{AssignedAgent: &a, Status: status}
}

func TestLeastLoadedAgent(t *testing.T) {
	users := []domain.User{admin, agentTwo, alice, agentOne}

	tests := []struct {
		name    string
		tickets []domain.Ticket
		want    int64
	}{
		{name: "tie goes to lowest id", want: agentOne.ID},
		{
			name:    "fewest active tickets wins",
			tickets: []domain.Ticket{assignedTicket(agentOne, domain.TicketStatusOpen)},
			want:    agentTwo.ID,
		},
		{
			name: "resolved and reopened tickets do not count",
			tickets: []domain.Ticket{
				assignedTicket(agentOne, domain.TicketStatusResolved),
				assignedTicket(agentOne, domain.TicketStatusReopened),
				assignedTicket(agentTwo, domain.TicketStatusAwaitingResponse),
			},
			want: agentOne.ID,
		},
		{
			name: "in progress counts",
			tickets: []domain.Ticket{
				assignedTicket(agentOne, domain.TicketStatusInProgress),
				assignedTicket(agentOne, domain.TicketStatusOpen),
				assignedTicket(agentTwo, domain.TicketStatusInProgress),
			},
			want: agentTwo.ID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LeastLoadedAgent(users, tt.tickets)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestLeastLoadedAgentIgnoresNonAgents(t *testing.T) {
	assert.Nil(t, LeastLoadedAgent([]domain.User{alice, admin}, nil))
	assert.Nil(t, LeastLoadedAgent(nil, nil))
}
