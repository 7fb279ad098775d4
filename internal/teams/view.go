package teams

import (
	"fmt"
	"time"

	"github.com/gdg-garage/eventra-api/internal/models"
	"gorm.io/gorm"
)

type Member struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Mobile    string          `json:"mobile"`
	College   string          `json:"college"`
	StudentID *string         `json:"student_id"`
	Role      models.TeamRole `json:"role"`
	JoinedAt  time.Time       `json:"joined_at"`
}

type TeamView struct {
	models.Team
	EventTitle string   `json:"event_title"`
	Leader     *Member  `json:"leader"`
	Members    []Member `json:"members"`
}

type memberRow struct {
	TeamID uint
	Member
}

func memberQuery(db *gorm.DB) *gorm.DB {
	return db.Table("team_members").
		Select(`team_members.team_id, users.id, users.name, users.email, users.mobile, users.college,
			users.student_id, team_members.role, team_members.joined_at`).
		Joins("JOIN users ON users.id = team_members.user_id").
		Order("team_members.team_id, CASE WHEN team_members.role = 'leader' THEN 0 ELSE 1 END, team_members.joined_at, team_members.id")
}

// roster lists a team's members, leader first then in join order.
func roster(db *gorm.DB, teamID uint) ([]Member, error) {
	var rows []memberRow
	if err := memberQuery(db).Where("team_members.team_id = ?", teamID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	out := make([]Member, len(rows))
	for i, r := range rows {
		out[i] = r.Member
	}
	return out, nil
}

func populate(db *gorm.DB, list []models.Team) ([]TeamView, error) {
	views := make([]TeamView, len(list))
	if len(list) == 0 {
		return views, nil
	}

	teamIDs := make([]uint, len(list))
	eventIDs := make([]uint, 0, len(list))
	for i, t := range list {
		teamIDs[i] = t.ID
		eventIDs = append(eventIDs, t.EventID)
	}

	var rows []memberRow
	if err := memberQuery(db).Where("team_members.team_id IN ?", teamIDs).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	byTeam := make(map[uint][]Member)
	for _, r := range rows {
		byTeam[r.TeamID] = append(byTeam[r.TeamID], r.Member)
	}

	var evs []models.Event
	if err := db.Select("id", "title").Where("id IN ?", eventIDs).Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("load event titles: %w", err)
	}
	titles := make(map[uint]string, len(evs))
	for _, e := range evs {
		titles[e.ID] = e.Title
	}

	for i, t := range list {
		v := TeamView{Team: t, EventTitle: titles[t.EventID], Members: []Member{}}
		for _, m := range byTeam[t.ID] {
			if m.Role == models.TeamRoleLeader {
				leader := m
				v.Leader = &leader
				continue
			}
			v.Members = append(v.Members, m)
		}
		views[i] = v
	}
	return views, nil
}
