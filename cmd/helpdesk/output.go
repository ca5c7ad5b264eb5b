package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{name: raw})
	}
	return id, nil
}

func parseInt(name, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{name: raw})
	}
	return n, nil
}

func parseDate(name, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("invalid "+name+", want YYYY-MM-DD", map[string]any{name: raw})
	}
	return t, nil
}

func agentName(t *domain.Ticket) string {
	if t.AssignedAgent == nil {
		return "-"
	}
	return t.AssignedAgent.Name
}

func writeTickets(w io.Writer, tickets []domain.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, "no tickets")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCATEGORY\tTITLE\tREQUESTER\tAGENT\tCREATED")
	for i := range tickets {
		t := &tickets[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, t.Category, t.Title, t.Requester.Name, agentName(t), t.CreatedAt.Format(dateLayout))
	}
	tw.Flush()
}

func writeTicket(w io.Writer, t *domain.Ticket) {
	fmt.Fprintf(w, "Ticket #%d: %s\n", t.ID, t.Title)
	fmt.Fprintf(w, "Status: %s\nCategory: %s\nRequester: %s\nAgent: %s\n", t.Status, t.Category, t.Requester.Name, agentName(t))
	fmt.Fprintf(w, "Description: %s\n", t.Description)
	if t.Rating != nil {
		fmt.Fprintf(w, "Rating: %d\n", *t.Rating)
	}
	if t.AgentFlagged {
		fmt.Fprintln(w, "Agent flagged: yes")
	}
	if len(t.Notes) > 0 {
		fmt.Fprintln(w, "Notes:")
		for _, n := range t.Notes {
			fmt.Fprintf(w, "  [%s] %s: %s\n", n.CreatedAt.Format(time.RFC3339), n.AuthorName, n.Message)
		}
	}
	fmt.Fprintln(w, "History:")
	for _, h := range t.History {
		fmt.Fprintf(w, "  [%s] %s (%s)\n", h.Timestamp.Format(time.RFC3339), h.Action, h.PerformedBy)
	}
}

func writeChanges(w io.Writer, changes []domain.ChangeRequest) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "no change requests")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tREQUESTER\tEXPIRY\tCREATED")
	for i := range changes {
		c := &changes[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.Title, c.Requester.Name, c.ExpiryDate.Format(dateLayout), c.CreatedAt.Format(dateLayout))
	}
	tw.Flush()
}

func writeChange(w io.Writer, c *domain.ChangeRequest) {
	fmt.Fprintf(w, "Change request #%d: %s\nStatus: %s\nExpiry: %s\n", c.ID, c.Title, c.Status, c.ExpiryDate.Format(dateLayout))
	if c.ImplementationNote != nil {
		fmt.Fprintf(w, "Implementation note: %s\n", *c.ImplementationNote)
	}
}

func writeUsers(w io.Writer, users []domain.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Name, u.Role)
	}
	tw.Flush()
}

func writeMonthly(w io.Writer, report map[string]string) {
	if len(report) == 0 {
		fmt.Fprintln(w, "no resolved or reopened tickets")
		return
	}
	keys := make([]string, 0, len(report))
	for k := range report {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, report[k])
	}
}

func writeRatings(w io.Writer, ratings []service.AgentRating) {
	if len(ratings) == 0 {
		fmt.Fprintln(w, "no assigned tickets")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tTICKETS\tRATED\tAVERAGE\tFLAGGED")
	for _, r := range ratings {
		fmt.Fprintf(tw, "%s (%d)\t%d\t%d\t%.2f\t%d\n", r.Agent.Name, r.Agent.ID, r.Tickets, r.Rated, r.Average, r.Flagged)
	}
	tw.Flush()
}
