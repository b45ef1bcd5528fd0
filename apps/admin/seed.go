package main

import (
	"time"

	"github.com/trezcool/kelasi/core/fiche"
	"github.com/trezcool/kelasi/core/user"
)

// seed loads a small demo data set: a teacher, an inspector, a director and a
// few fiches in various workflow states. Safe to run once on a fresh DB only.
func (cli *commandLine) seed() error {
	now := time.Now().UTC()
	isActive := true

	teacher := user.User{
		Name:      "Papy Kalala",
		Username:  "pkalala",
		Email:     "pkalala@kelasi.cd",
		Roles:     user.TeacherRoles,
		IsActive:  &isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := teacher.SetPassword("kelasi123"); err != nil {
		return err
	}
	teacher, err := cli.usrRepo.CreateUser(teacher)
	if err != nil {
		return err
	}

	inspector := user.User{
		Name:      "Chantal Tshilombo",
		Username:  "ctshilombo",
		Email:     "ctshilombo@kelasi.cd",
		Roles:     []string{user.RoleInspectorPedagogical},
		IsActive:  &isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = inspector.SetPassword("kelasi123"); err != nil {
		return err
	}
	if _, err = cli.usrRepo.CreateUser(inspector); err != nil {
		return err
	}

	director := user.User{
		Name:      "Serge Ilunga",
		Username:  "silunga",
		Email:     "silunga@kelasi.cd",
		Roles:     user.AllRoles,
		IsActive:  &isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = director.SetPassword("kelasi123"); err != nil {
		return err
	}
	if _, err = cli.usrRepo.CreateUser(director); err != nil {
		return err
	}

	fiches := []fiche.Fiche{
		{
			Title:    "Les fractions",
			Subject:  "math",
			Level:    "5e",
			Duration: 60,
			Content: "Mise en situation: partage d'une orange.\n" +
				"Développement: comparer des fractions simples.\n" +
				"Synthèse: règles de comparaison.\nÉvaluation: exercices au tableau.",
			Objectives: []fiche.Objective{
				{ID: "obj-1", Description: "comparer des fractions simples"},
				{ID: "obj-2", Description: "représenter une fraction"},
			},
			Activities: []fiche.Activity{
				{Title: "Comparer des fractions simples", Duration: 30},
				{Title: "Représenter une fraction (voir obj-2)", Duration: 20},
			},
			Status: fiche.StatusPending,
		},
		{
			Title:    "Le cycle de l'eau",
			Subject:  "sciences",
			Level:    "6e",
			Duration: 45,
			Content:  "Brouillon: expliquer le cycle de l'eau.",
			Objectives: []fiche.Objective{
				{ID: "obj-1", Description: "expliquer le cycle de l'eau"},
			},
			Status: fiche.StatusDraft,
		},
	}
	for _, f := range fiches {
		f.CreatedBy = teacher.ID
		f.CreatedAt = now
		f.UpdatedAt = now
		if _, err = cli.ficheRepo.CreateFiche(f); err != nil {
			return err
		}
	}
	return nil
}
