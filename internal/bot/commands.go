package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/campuspointe/pointage/internal/models"
)

const (
	operatorHelp = `Commandes disponibles :
/bilan <type> <seance> <date> - Bilan de présence d'une séance
/token - Obtenir un jeton d'accès à l'API
/help - Afficher ce message`

	adminHelp = `Commandes disponibles :
/seance add <type> <id> <date> debut <HH:MM> fin <HH:MM> [tolerance <min>] - Enregistrer une séance
/seance list <date> - Séances enregistrées pour une date
/override set <type> <seance> <etudiant> <date> statut <statut> motif <motif> - Saisir une présence manuelle
/override list <date> - Saisies manuelles d'une date
/bilan <type> <seance> <date> - Bilan de présence d'une séance
/token - Obtenir un jeton d'accès à l'API
/help - Afficher ce message

Exemples :
/seance add course INF201 2025-11-26 debut 08:30 fin 10:30 tolerance 15
/seance list 2025-11-26
/override set course INF201 ET04512 2025-11-26 statut absence_justifiee motif "certificat médical"
/override list 2025-11-26
/bilan course INF201 2025-11-26`
)

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeOperatorCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start": b.handleStart,
		"bilan": b.handleBilan,
		"token": b.handleToken,
		"help":  b.handleHelp,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"seance":   b.handleSeance,
		"override": b.handleOverride,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routeOperatorCommands(cmd); ok {
		if err := handler(msg); err != nil {
			logger.Error.Printf("Command error: %v", err)
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Erreur : %v", err))
		}
		return
	}

	if b.admins[msg.From.ID] {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			if err := handler(msg); err != nil {
				logger.Error.Printf("Command error: %v", err)
				b.sendMessage(msg.Chat.ID, fmt.Sprintf("Erreur : %v", err))
			}
		}
		return
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	var text string
	if b.admins[msg.From.ID] {
		text = adminHelp
	} else {
		text = operatorHelp
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Envoyez /help pour la liste des commandes.")
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "Bonjour ! Je suis le bot de pointage.\n\n"
	if b.admins[msg.From.ID] {
		text += "Vous êtes administrateur. Envoyez /help pour la liste des commandes."
	} else {
		text += "Envoyez /token pour obtenir un jeton d'accès à l'API."
	}

	return b.sendMessage(msg.Chat.ID, text)
}

// handleToken hands the operator their API token, minting one on first
// request. The operator identity is the telegram username, or the
// numeric id when the account has none.
func (b *Bot) handleToken(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return b.sendMessage(msg.Chat.ID, "L'authentification API est désactivée sur cette instance.")
	}

	operator := msg.From.UserName
	if operator == "" {
		operator = strconv.FormatInt(msg.From.ID, 10)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, isNew, err := b.tokens.FetchOrCreateOperatorToken(ctx, b.config.Auth.Campus, operator)
	if err != nil {
		return fmt.Errorf("jeton indisponible pour %s : %v", operator, err)
	}

	if isNew {
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Voici votre nouveau jeton :\n\n%s", info.Token))
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Votre jeton :\n\n%s", info.Token))
}

func (b *Bot) handleBilan(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 3 {
		return b.sendMessage(msg.Chat.ID, "Utilisation : /bilan <type> <seance> <date>")
	}

	sessionType, sessionID, date := args[0], args[1], args[2]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := b.service.ReconcileStoredSession(ctx, sessionID, sessionType, date)
	if err != nil {
		return fmt.Errorf("bilan impossible pour %s/%s : %v", sessionType, sessionID, err)
	}

	lateCounts := b.service.Config.Attendance.LateCountsAsPresent

	var out strings.Builder
	out.WriteString(fmt.Sprintf("Bilan %s %s du %s :\n\n", sessionType, sessionID, date))
	out.WriteString(fmt.Sprintf("👥 Inscrits : %d\n", result.Summary.Total))
	out.WriteString(fmt.Sprintf("✅ Présents : %d (dont %d en retard)\n", result.Summary.Presents(lateCounts), result.Summary.Late))
	out.WriteString(fmt.Sprintf("❌ Absents : %d\n", result.Summary.Absents(lateCounts)))
	if result.Summary.PendingEntry+result.Summary.PendingExit > 0 {
		out.WriteString(fmt.Sprintf("⏳ Pointages incomplets : %d entrée / %d sortie\n",
			result.Summary.PendingEntry, result.Summary.PendingExit))
	}
	if result.Summary.Overridden > 0 {
		out.WriteString(fmt.Sprintf("✍️ Saisies manuelles : %d\n", result.Summary.Overridden))
	}
	for _, warning := range result.Warnings {
		out.WriteString(fmt.Sprintf("⚠️ %s\n", warning))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) handleSeance(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Utilisation :\n"+
			"/seance add <type> <id> <date> debut <HH:MM> fin <HH:MM> [tolerance <min>] - Enregistrer une séance\n"+
			"/seance list <date> - Séances d'une date")
	}

	switch args[0] {
	case "add":
		return b.handleSeanceAdd(msg.Chat.ID, args[1:])
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("précisez la date : /seance list 2025-11-26")
		}
		return b.handleSeanceList(msg.Chat.ID, args[1])
	default:
		return fmt.Errorf("sous-commande inconnue : %s", args[0])
	}
}

func (b *Bot) handleSeanceAdd(chatID int64, args []string) error {
	if len(args) < 7 {
		return fmt.Errorf("utilisation : add <type> <id> <date> debut <HH:MM> fin <HH:MM> [tolerance <min>]")
	}

	window := models.SessionWindow{
		SessionType: args[0],
		SessionID:   args[1],
		Date:        args[2],
		Mode:        models.ModeNormal,
	}

	for i := 3; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return fmt.Errorf("valeur manquante pour %s", args[i])
		}

		switch args[i] {
		case "debut":
			window.NominalStart = args[i+1]
		case "fin":
			window.NominalEnd = args[i+1]
		case "pointage":
			window.PointageStart = args[i+1]
		case "tolerance":
			tol, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("tolérance incorrecte : %v", err)
			}
			window.Tolerance = tol
		case "sortie":
			grace, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("fenêtre de sortie incorrecte : %v", err)
			}
			window.ExitGrace = grace
			window.Mode = models.ModeBiCheck
		case "groupe":
			window.GroupID = args[i+1]
		default:
			return fmt.Errorf("paramètre inconnu : %s", args[i])
		}
	}

	if err := window.Validate(); err != nil {
		return fmt.Errorf("séance invalide : %v", err)
	}

	existing, err := b.service.Store.GetSessionWindow(window.SessionID, window.SessionType, window.Date)
	if err != nil {
		return fmt.Errorf("erreur de vérification de la séance %s/%s : %v", window.SessionType, window.SessionID, err)
	}

	if err := b.service.Store.CreateSessionWindow(&window); err != nil {
		return fmt.Errorf("erreur d'enregistrement : %v", err)
	}

	action := "enregistrée"
	if existing != nil {
		action = "mise à jour"
	}

	return b.sendMessage(chatID, fmt.Sprintf("✅ Séance %s %s %s :\n"+
		"Horaire : %s — %s (tolérance %d min)\n"+
		"Mode : %s",
		window.SessionType,
		window.SessionID,
		action,
		window.NominalStart,
		window.NominalEnd,
		window.Tolerance,
		window.Mode,
	))
}

func (b *Bot) handleSeanceList(chatID int64, date string) error {
	windows, err := b.service.Store.ListSessionWindows(date)
	if err != nil {
		return fmt.Errorf("erreur de lecture des séances : %v", err)
	}

	if len(windows) == 0 {
		return b.sendMessage(chatID, "Aucune séance enregistrée pour cette date")
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("Séances du %s :\n\n", date))
	for _, w := range windows {
		out.WriteString(fmt.Sprintf("📝 %s %s (%s)\n"+
			"🕗 %s — %s, tolérance %d min\n\n",
			w.SessionType,
			w.SessionID,
			w.Mode,
			w.NominalStart,
			w.NominalEnd,
			w.Tolerance,
		))
	}

	return b.sendMessage(chatID, out.String())
}

func (b *Bot) handleOverride(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Utilisation :\n"+
			"/override set <type> <seance> <etudiant> <date> statut <statut> motif <motif> - Saisir une présence manuelle\n"+
			"/override list <date> - Saisies manuelles d'une date")
	}

	switch args[0] {
	case "set":
		return b.handleOverrideSet(msg.Chat.ID, args[1:])
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("précisez la date : /override list 2025-11-26")
		}
		return b.handleOverrideList(msg.Chat.ID, args[1])
	default:
		return fmt.Errorf("sous-commande inconnue : %s", args[0])
	}
}

func (b *Bot) handleOverrideSet(chatID int64, args []string) error {
	if len(args) < 6 {
		return fmt.Errorf("utilisation : set <type> <seance> <etudiant> <date> statut <statut> motif <motif>")
	}

	override := models.Override{
		SessionType: args[0],
		SessionID:   args[1],
		SubjectID:   args[2],
		Date:        args[3],
	}

	for i := 4; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return fmt.Errorf("valeur manquante pour %s", args[i])
		}
		switch args[i] {
		case "statut":
			override.Status = args[i+1]
		case "motif":
			override.Reason = strings.Trim(strings.Join(args[i+1:], " "), `"`)
		default:
			return fmt.Errorf("paramètre inconnu : %s", args[i])
		}
		if args[i] == "motif" {
			break
		}
	}

	if err := override.Validate(); err != nil {
		return fmt.Errorf("saisie invalide : %v", err)
	}

	existing, err := b.service.Store.GetOverride(override.SubjectID, override.SessionID, override.SessionType, override.Date)
	if err != nil {
		return fmt.Errorf("erreur de vérification de la saisie %s/%s/%s : %v",
			override.SessionType, override.SessionID, override.SubjectID, err)
	}

	if err := b.service.Store.CreateOverride(override); err != nil {
		return fmt.Errorf("erreur d'enregistrement : %v", err)
	}

	action := "enregistrée"
	if existing != nil {
		action = "remplacée"
	}

	return b.sendMessage(chatID, fmt.Sprintf("✅ Saisie manuelle %s pour %s (%s %s) :\n"+
		"Statut : %s\n"+
		"Motif : %s",
		action,
		override.SubjectID,
		override.SessionType,
		override.SessionID,
		override.Status,
		override.Reason,
	))
}

func (b *Bot) handleOverrideList(chatID int64, date string) error {
	overrides, err := b.service.Store.ListOverrides(date)
	if err != nil {
		return fmt.Errorf("erreur de lecture des saisies : %v", err)
	}

	if len(overrides) == 0 {
		return b.sendMessage(chatID, "Aucune saisie manuelle pour cette date")
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("Saisies manuelles du %s :\n\n", date))
	for _, o := range overrides {
		out.WriteString(fmt.Sprintf(
			"👉🏻 %s : %s %s → %s\n❓(%s)\n\n",
			o.SubjectID,
			o.SessionType,
			o.SessionID,
			o.Status,
			o.Reason,
		))
	}

	return b.sendMessage(chatID, out.String())
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
