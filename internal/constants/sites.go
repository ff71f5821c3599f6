package constants

// Домены сайтов с объявлениями. Порядок важен: в нем фабрика перебирает адаптеры.
const (
	SiteImmobiliare = "immobiliare.it"
	SiteIdealista   = "idealista.it"
	SiteCasa        = "casa.it"
	SiteSubito      = "subito.it"
	SiteRealtor     = "realtor.com"
)

// Имена сайтов, для которых есть обход поисковой выдачи
const (
	SearchSiteImmobiliare = "immobiliare"
	SearchSiteRealtor     = "realtor"
)
