package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/classgraph"
	"github.com/poiesic/classgraph/core"
)

var (
	dbPath  = flag.String("db", "./classroom_db", "database directory")
	rooms   = flag.Int("rooms", 3, "number of classrooms to seed")
	minutes = flag.Float64("spoken-minutes", 20, "audio minutes already consumed by each learner today")
)

var learners = []struct {
	subject string
	name    string
	locale  string
}{
	{"auth0|seed-ana", "Ana", "pt"},
	{"auth0|seed-bjorn", "Bjorn", "sv"},
	{"auth0|seed-chidi", "Chidi", "ig"},
	{"auth0|seed-dana", "Dana", "en"},
	{"auth0|seed-emre", "Emre", "tr"},
	{"auth0|seed-fatima", "Fatima", "ar"},
}

var courses = []struct {
	name     string
	language string
	level    string
}{
	{"Morning French", "fr", "A2"},
	{"Business English", "en", "B2"},
	{"Spanish Conversation", "es", "B1"},
	{"Japanese Basics", "ja", "A1"},
}

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

func main() {
	db, err := classgraph.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if err := seed(context.Background(), db); err != nil {
		panic(err)
	}
}

func seed(ctx context.Context, db *classgraph.Database) error {
	repo := db.Repository()

	// One shared plan: an hour of audio per day, five hours per week.
	entitlement, err := repo.SetKeyed(ctx,
		core.NewEntitlement("standard", "subscription"), "seed-entitlement-standard")
	if err != nil {
		return err
	}
	daily, err := repo.SetKeyed(ctx,
		core.NewUsagePolicy("seconds", core.PerDay, 3600), "seed-policy-daily")
	if err != nil {
		return err
	}
	weekly, err := repo.SetKeyed(ctx,
		core.NewUsagePolicy("seconds", core.PerWeek, 18000), "seed-policy-weekly")
	if err != nil {
		return err
	}
	for i, policy := range []core.ID{daily.ID(), weekly.ID()} {
		_, err = repo.SetKeyed(ctx,
			core.NewPolicyAggregate(entitlement.ID(), policy),
			fmt.Sprintf("seed-aggregate-%d", i))
		if err != nil {
			return err
		}
	}

	tutor, err := repo.SetKeyed(ctx,
		core.NewAgent("Lumi", "patient conversational tutor"), "seed-agent-lumi")
	if err != nil {
		return err
	}

	classrooms := make([]*core.Entity, 0, *rooms)
	for i := 0; i < *rooms && i < len(courses); i++ {
		course := courses[i]
		room, err := repo.SetKeyed(ctx,
			core.NewClassroom(course.name, course.language, course.level),
			"seed-room-"+course.name)
		if err != nil {
			return err
		}
		classrooms = append(classrooms, room)
		slog.Info("seeded classroom", "name", course.name, "id", room.ID())
	}

	for i, l := range learners {
		participant, err := repo.SetKeyed(ctx,
			core.NewParticipant(l.subject, l.name, l.locale), "seed-"+l.subject)
		if err != nil {
			return err
		}

		_, err = repo.SetKeyed(ctx,
			core.NewGranted(participant.ID(), entitlement.ID(),
				time.Now().AddDate(0, 1, 0), 1),
			"seed-grant-"+l.subject)
		if err != nil {
			return err
		}

		room := classrooms[i%len(classrooms)]
		_, err = repo.SetKeyed(ctx,
			core.NewParticipation(room.ID(), participant.ID(), "learner"),
			"seed-enrolment-"+l.subject)
		if err != nil {
			return err
		}
		_, err = repo.SetKeyed(ctx,
			core.NewParticipation(room.ID(), tutor.ID(), "tutor"),
			fmt.Sprintf("seed-tutoring-%s", room.ID()))
		if err != nil {
			return err
		}

		if err := seedConversation(ctx, db, participant, room, *minutes*60); err != nil {
			return err
		}
		slog.Info("seeded learner", "subject", l.subject, "classroom", room.ID())
	}

	return nil
}

// seedConversation writes one spoken turn: the audio recording, its
// transcription, the message, and the edges tying them together.
func seedConversation(ctx context.Context, db *classgraph.Database, participant, room *core.Entity, seconds float64) error {
	repo := db.Repository()
	keyBase := fmt.Sprintf("seed-turn-%s", participant.ID())

	audio, err := repo.SetKeyed(ctx, core.NewAudio(
		"file://seed/"+string(participant.ID())+".ogg", "audio/ogg",
		seconds, core.AudioStatusReady), keyBase+"-audio")
	if err != nil {
		return err
	}
	transcript, err := repo.SetKeyed(ctx,
		core.NewText("Bonjour, je voudrais pratiquer.", "fr"), keyBase+"-text")
	if err != nil {
		return err
	}
	message, err := repo.SetKeyed(ctx,
		core.NewMessage(core.MessageKindAudio, time.Now()), keyBase+"-message")
	if err != nil {
		return err
	}

	edges := []struct {
		key   string
		draft *core.Entity
	}{
		{keyBase + "-ownership", core.NewOwnership(participant.ID(), audio.ID(), core.TagAudio)},
		{keyBase + "-occurs", core.NewOccursIn(message.ID(), room.ID())},
		{keyBase + "-source", core.NewSource(message.ID(), audio.ID(), core.TagAudio)},
		{keyBase + "-representation", core.NewRepresentation(transcript.ID(), audio.ID(), core.TagAudio)},
		{keyBase + "-usage", core.NewUsage(participant.ID(), audio.ID(), core.TagAudio, core.Seconds(seconds))},
	}
	for _, e := range edges {
		if _, err := repo.SetKeyed(ctx, e.draft, e.key); err != nil {
			return err
		}
	}
	return nil
}
