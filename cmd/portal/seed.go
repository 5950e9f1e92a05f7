package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/notices"
	"pecportal/internal/profiles"
)

// seedClubs returns the campus clubs for local development.
func seedClubs() []clubs.Club {
	return []clubs.Club{
		{
			ID:          "c1",
			Name:        "Mulearn",
			Description: "Learning by doing. A community for peer-to-peer learning and industry collaboration.",
			LogoInitial: "M",
			Category:    "Tech & Coding",
			Image:       "https://images.unsplash.com/photo-1522071820081-009f0129c71c?auto=format&fit=crop&q=80&w=800",
		},
		{
			ID:          "c2",
			Name:        "IEEE",
			Description: "The world's largest technical professional organization dedicated to advancing technology.",
			LogoInitial: "I",
			Category:    "Professional",
			Image:       "https://images.unsplash.com/photo-1517245386807-bb43f82c33c4?auto=format&fit=crop&q=80&w=800",
		},
		{
			ID:          "c3",
			Name:        "IEDC",
			Description: "Innovation and Entrepreneurship Development Centre. Fostering startup culture.",
			LogoInitial: "E",
			Category:    "Innovation",
			Image:       "https://images.unsplash.com/photo-1519389950473-47ba0277781c?auto=format&fit=crop&q=80&w=800",
		},
		{
			ID:          "c4",
			Name:        "CSI",
			Description: "Computer Society of India student branch. Seminars, workshops and quizzes.",
			LogoInitial: "C",
			Category:    "Tech Society",
			Image:       "https://images.unsplash.com/photo-1531482615713-2afd69097998?auto=format&fit=crop&q=80&w=800",
		},
		{
			ID:          "c5",
			Name:        "ICFOSS",
			Description: "Promoting Free and Open Source Software. Workshops on Linux, Python and more.",
			LogoInitial: "F",
			Category:    "Open Source",
			Image:       "https://images.unsplash.com/photo-1555099962-4199c345e5dd?auto=format&fit=crop&q=80&w=800",
		},
	}
}

// seedProfiles returns demo profiles. They have no login account; sign up to get one.
func seedProfiles() []profiles.Profile {
	now := time.Now().UTC()
	club := func(id string) *string { return &id }

	return []profiles.Profile{
		{ID: uuid.NewString(), Name: "Dr. Smith", Role: profiles.RoleAdmin, Email: "admin@pec.ac.in", Department: "Computer Science", CreatedAt: now},
		{ID: uuid.NewString(), Name: "Prof. Johnson", Role: profiles.RoleFaculty, Email: "johnson@pec.ac.in", Department: "Mechanical Engineering", CreatedAt: now},
		{ID: uuid.NewString(), Name: "Alex", Role: profiles.RoleLead, Email: "alex@pec.ac.in", Department: "Electrical & Electronics", ClubID: club("c2"), CreatedAt: now},
		{ID: uuid.NewString(), Name: "Sarah", Role: profiles.RoleStudent, Email: "sarah@pec.ac.in", Department: "Civil Engineering", ClubID: club("c2"), CreatedAt: now},
		{ID: uuid.NewString(), Name: "Rahul K", Role: profiles.RoleStudent, Email: "rahul@pec.ac.in", Department: "Computer Science", ClubID: club("c1"), CreatedAt: now},
		{ID: uuid.NewString(), Name: "Meera Nair", Role: profiles.RoleStudent, Email: "meera@pec.ac.in", Department: "Electronics & Communication", CreatedAt: now},
	}
}

// seedRoster returns the IEEE roster kept by its lead.
func seedRoster() []clubs.Member {
	now := time.Now().UTC()
	return []clubs.Member{
		{ID: uuid.NewString(), ClubID: "c2", Name: "Alex", Role: clubs.MemberRoleExecutive, Status: clubs.StatusActive, JoinedOn: "2023-06-01", CreatedAt: now},
		{ID: uuid.NewString(), ClubID: "c2", Name: "Sarah", Role: clubs.MemberRoleMember, Status: clubs.StatusActive, JoinedOn: "2023-08-14", CreatedAt: now},
	}
}

// seedNotices returns demo notices. The urgent notice is the newest.
func seedNotices() []notices.Notice {
	now := time.Now().UTC()
	return []notices.Notice{
		{ID: uuid.NewString(), Title: "Semester Exams Rescheduled", Content: "The S6 semester exams have been postponed by one week due to heavy rains.", Date: "2023-10-24", Category: notices.CategoryExam, CreatedAt: now.Add(-4 * time.Hour)},
		{ID: uuid.NewString(), Title: "Hackathon Registration Open", Content: "Register for the upcoming 24-hour hackathon organized by IEDC.", Date: "2023-10-25", Category: notices.CategoryEvent, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: uuid.NewString(), Title: "Library Maintenance", Content: "The central library will remain closed this Sunday for renovation.", Date: "2023-10-26", Category: notices.CategoryGeneral, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: uuid.NewString(), Title: "Urgent: Scholarship Applications", Content: "Last date for E-Grantz submission is tomorrow.", Date: "2023-10-27", Category: notices.CategoryUrgent, CreatedAt: now.Add(-time.Hour)},
	}
}

// seedEvents returns demo events.
func seedEvents() []events.Event {
	now := time.Now().UTC()
	image := func(n int) *string {
		url := fmt.Sprintf("https://picsum.photos/400/%d", 200+n)
		return &url
	}

	return []events.Event{
		{ID: uuid.NewString(), Title: "Tech Summit 2024", Description: "A gathering of the brightest minds in engineering.", Date: "2024-11-15", Location: "Main Auditorium", Organizer: "IEEE", RegisteredCount: 120, ImageURL: image(0), Category: "Seminar", CreatedAt: now.Add(-5 * time.Hour)},
		{ID: uuid.NewString(), Title: "Startup Pitch Deck", Description: "Pitch your ideas to top investors and alumni.", Date: "2024-11-20", Location: "Seminar Hall", Organizer: "IEDC", RegisteredCount: 45, ImageURL: image(1), Category: "Workshop", CreatedAt: now.Add(-4 * time.Hour)},
		{ID: uuid.NewString(), Title: "Python Workshop", Description: "Hands-on session on Python for Data Science.", Date: "2024-11-22", Location: "Computer Lab 2", Organizer: "Mulearn", RegisteredCount: 80, ImageURL: image(2), Category: "Technical", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: uuid.NewString(), Title: "Cultural Fest Auditions", Description: "Auditions for the upcoming annual arts festival.", Date: "2024-11-25", Location: "Open Air Theatre", Organizer: "College Union", RegisteredCount: 200, ImageURL: image(3), Category: "Cultural", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: uuid.NewString(), Title: "Hack-a-Future", Description: "24 Hour coding hackathon to solve real world problems.", Date: "2024-12-01", Location: "Main Block", Organizer: "CSI", RegisteredCount: 150, ImageURL: image(4), Category: "Hackathon", CreatedAt: now.Add(-time.Hour)},
	}
}
