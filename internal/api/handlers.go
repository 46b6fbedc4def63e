package api

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/basicrecords/moodjournal/internal/domain"
	"github.com/basicrecords/moodjournal/internal/mood"
)

func (s *Server) handleCreateUser(c *fiber.Ctx) error {
	var payload domain.CreateUserInput
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	u, err := s.svc.CreateUser(c.UserContext(), payload)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": u})
}

// handleFindUsers looks a user up by the auth provider's uid.
func (s *Server) handleFindUsers(c *fiber.Ctx) error {
	firebaseID := c.Query("firebaseId")
	if firebaseID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "firebaseId is required")
	}

	items := []domain.User{}
	u, err := s.svc.FindUserByFirebaseID(c.UserContext(), firebaseID)
	switch {
	case err == nil:
		items = append(items, u)
	case !isNotFound(err):
		return err
	}
	return c.JSON(fiber.Map{"data": items, "meta": fiber.Map{"count": len(items)}})
}

func (s *Server) handleGetUser(c *fiber.Ctx) error {
	u, err := s.svc.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": u})
}

func (s *Server) handleDeleteUser(c *fiber.Ctx) error {
	if err := s.svc.DeleteUser(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCreateEntry(c *fiber.Ctx) error {
	var payload domain.CreateEntryInput
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	e, err := s.svc.CreateEntry(c.UserContext(), payload)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": e})
}

func (s *Server) handleListEntries(c *fiber.Ctx) error {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		return err
	}
	q := domain.EntryQuery{UserID: c.Query("userId"), Limit: c.QueryInt("limit", 0)}

	items, err := s.svc.ListEntries(c.UserContext(), q, criteria)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"count": len(items), "criteria": criteria},
	})
}

func (s *Server) handleGetEntry(c *fiber.Ctx) error {
	e, err := s.svc.GetEntry(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e})
}

func (s *Server) handleUpdateEntry(c *fiber.Ctx) error {
	var payload domain.UpdateEntryInput
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	e, err := s.svc.UpdateEntry(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": e})
}

func (s *Server) handleDeleteEntry(c *fiber.Ctx) error {
	if err := s.svc.DeleteEntry(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleWeeklyInsights(c *fiber.Ctx) error {
	criteria, err := criteriaFromQuery(c)
	if err != nil {
		return err
	}
	precision := s.cfg.Precision
	if raw := c.Query("precision"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 0 || p > 6 {
			return fiber.NewError(fiber.StatusBadRequest, "precision must be an integer between 0 and 6")
		}
		precision = p
	}

	insights, err := s.svc.WeeklyInsights(c.UserContext(), c.Query("userId"), criteria, precision)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": insights})
}

func (s *Server) handleClassify(c *fiber.Ctx) error {
	score, err := strconv.ParseFloat(c.Query("score"), 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return fiber.NewError(fiber.StatusBadRequest, "score must be a finite number")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"score": score, "level": mood.Classify(score)}})
}

// criteriaFromQuery reads repeated or comma separated "mood=type:Level"
// parameters.
func criteriaFromQuery(c *fiber.Ctx) (*domain.CriteriaSet, error) {
	set := domain.NewCriteriaSet()
	for _, raw := range c.Context().QueryArgs().PeekMulti("mood") {
		for _, part := range strings.Split(string(raw), ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			criterion, err := domain.ParseCriterion(part)
			if err != nil {
				return nil, err
			}
			set.Add(criterion)
		}
	}
	return set, nil
}
