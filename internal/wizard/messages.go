package wizard

import "fmt"

// Assistant copy shown in the transcript.
const (
	msgStart         = "Parfait ! Développons ensemble le scénario « %s ».\n\nPour commencer, souhaitez-vous créer une nouvelle configuration ou utiliser une existante ?"
	msgConfigReady   = "Configuration prête ! Définissons maintenant vos objectifs (maximum %d).\n\nJe vous propose des objectifs pertinents basés sur votre scénario..."
	msgNextToCibles  = "Excellent choix ! Passons maintenant aux cibles (maximum %d).\n\nJe vous propose des personas adaptés à vos objectifs..."
	msgPlanReady     = "Félicitations ! Votre plan de contenu est prêt.\n\nJ'ai généré %d articles stratégiques adaptés à vos objectifs et cibles."
	msgConfigFailed  = "Impossible d'ouvrir la configuration : %s"
	msgCreateFailed  = "Impossible de créer la configuration : %s"
	msgPersistFailed = "Erreur lors de l'enregistrement des %s : %s"
	msgPlanFailed    = "Erreur lors de la génération du plan : %s"
)

func startMessage(nom string) string {
	if nom == "" {
		nom = "sélectionné"
	}
	return fmt.Sprintf(msgStart, nom)
}
