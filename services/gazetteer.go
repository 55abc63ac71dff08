package services

import (
	"strings"

	"go.uber.org/zap"

	"censo-sisreg/models"
)

// municipiosParaiba é o gazetteer fechado de municípios válidos, na grafia
// canônica (com acentos). A ordem é fixa e determina a prioridade do casamento:
// o primeiro contido no texto normalizado vence.
var municipiosParaiba = []string{
	"AGUIAR", "ALAGOA GRANDE", "ALAGOA NOVA", "ALAGOINHA", "ALHANDRA", "AMPARO", "APARECIDA", "ARAÇAGI",
	"ARARA", "ARARUNA", "AREIA", "AREIA DE BARAÚNAS", "AREIAL", "AROEIRAS", "ASSUNÇÃO", "BAÍA DA TRAIÇÃO",
	"BANANEIRAS", "BARAÚNA", "BARRA DE SANTA ROSA", "BARRA DE SANTANA", "BARRA DE SÃO MIGUEL",
	"BAYEUX", "BELÉM", "BELÉM DO BREJO DO CRUZ", "BERNARDINO BATISTA", "BOA VENTURA", "BOA VISTA",
	"BOM JESUS", "BOM SUCESSO", "BONITO DE SANTA FÉ", "BOQUEIRÃO", "BORBOREMA", "BREJO DO CRUZ",
	"BREJO DOS SANTOS", "CAAPORÃ", "CABACEIRAS", "CABEDELO", "CACHOEIRA DOS ÍNDIOS", "CACIMBA DE AREIA",
	"CACIMBA DE DENTRO", "CACIMBAS", "CAIÇARA", "CAJAZEIRAS", "CAJAZEIRINHAS", "CALDAS BRANDÃO",
	"CAMALAÚ", "CAMPINA GRANDE", "CARRAPATEIRA", "CATINGUEIRA", "CATOLÉ DO ROCHA",
	"CEARÁ-MIRIM", "CONDADO", "CONDE", "CONGO", "COREMAS", "COXIXOLA", "CRUZ DO ESPÍRITO SANTO",
	"CUBATI", "CUITE", "CUITEGI", "CUITE DE MAMANGUAPE", "CURRAL DE CIMA", "CURRAL VELHO", "DAMIAO",
	"DESTERRO", "DIAMANTE", "DONA INÉS", "DUAS ESTRADAS", "EMAS", "ESPERANÇA", "FAGUNDES",
	"FREI MARTINHO", "GADO BRAVO", "GUARABIRA", "GURINHÉM", "GURJÃO", "IBIARA", "IGARACY",
	"IMACULADA", "INGA", "ITABAIANA", "ITAPORANGA", "ITAPOROROCA", "ITATUBA", "JACARAÚ", "JERICÓ",
	"JOÃO PESSOA", "JUAREZ TAVORA", "JUAZEIRINHO", "JUNCO DO SERIDO", "JURU", "LAGOA",
	"LAGOA DE DENTRO", "LAGOA SECA", "LASTRO", "LIVRAMENTO", "LOGRADOURO", "LUCENA", "MÃE D'ÁGUA",
	"MALTA", "MAMANGUAPE", "MANAÍRA", "MARCELÍA", "MARI", "MARIZÓPOLIS", "MASSARANDUBA", "MATARACA",
	"MATINHAS", "MATO GROSSO", "MATURÉIA", "MOGEIRO", "MONTADAS", "MONTE HOREBE", "MONTEIRO",
	"MULUNGU", "NATUBA", "NAZARÉ", "NOVA FLORESTA", "NOVA OLINDA", "NOVA PALMEIRA", "OLHO D'ÁGUA",
	"OLIVEDOS", "OURO VELHO", "PARARI", "PASSAGEM", "PATOS", "PAULISTA", "PEDRA BRANCA", "PEDRA LAVRADA",
	"PEDRAS DE FOGO", "PIANCÓ", "PICUÍ", "PILAR", "PILÕEZINHOS", "PIRPIRITUBA", "PITIMBU", "POCINHOS",
	"POLESTINA", "POMBAL", "PRATA", "PRINCESA ISABEL", "PUXINANÃ", "QUEIMADAS", "QUIXABA", "REMÍGIO", "RIACHÃO",
	"RIACHÃO DO BACAMARTE", "RIACHÃO DO POÇO", "RIACHO DE SANTO ANTÔNIO", "RIACHO DOS CAVALOS",
	"SALGADINHO", "SALGADO DE SÃO FÉLIX", "SANTA CECÍLIA", "SANTA CRUZ", "SANTA HELENA", "SANTA INÊS",
	"SANTA LUZIA", "SANTA RITA", "SANTA TERESINHA", "SANTANA DE MANGUEIRA", "SANTANA DOS GARROTES",
	"SANTO ANDRÉ", "SÃO BENTO", "SÃO BENTINHO", "SÃO DOMINGOS", "SÃO DOMINGOS DO CARIRI",
	"SÃO FRANCISCO", "SÃO JOÃO DO CARIRI", "SÃO JOÃO DO RIO DO PEIXE", "SÃO JOÃO DO TIGRE",
	"SÃO JOSÉ DA LAGOA TAPADA", "SÃO JOSÉ DE CAIANA", "SÃO JOSÉ DE ESPINHARAS",
	"SÃO JOSÉ DE PIRANHAS", "SÃO JOSÉ DE PRINCESA", "SÃO JOSÉ DO BONFIM", "SÃO JOSÉ DO BREJO DO CRUZ",
	"SÃO JOSÉ DO SABUGI", "SÃO JOSÉ DOS CORDEIROS", "SÃO JOSÉ DOS RAMOS", "SÃO MAMEDE",
	"SÃO MIGUEL DE TAIPU", "SÃO SEBASTIÃO DE LAGOA DE ROÇA", "SÃO SEBASTIÃO DO UMBUZEIRO",
	"SAPÉ", "SERIDÓ", "SERTÃOZINHO", "SOBRADO", "SOLÂNEA", "SOLEDADE", "SOUSA", "SUMÉ",
	"TAPEROÁ", "TAVARES", "TEIXEIRA", "TENÓRIO", "TRIUNFO", "UIRAÚNA", "UMARI", "UMBURETAMA",
	"VÁRZEA", "VIEIRÓPOLIS", "VISTA SERRANA",
}

// entrada do gazetteer: nome canônico + chave normalizada pré-calculada.
type municipioEntry struct {
	canonico string
	chave    string
}

// MunicipioValidator casa texto ruidoso extraído dos PDFs contra o gazetteer
// e devolve a grafia canônica. Imutável após a construção.
type MunicipioValidator struct {
	normalizer *TextNormalizer
	entradas   []municipioEntry
	logger     *zap.Logger
}

func NewMunicipioValidator(normalizer *TextNormalizer, logger *zap.Logger) *MunicipioValidator {
	entradas := make([]municipioEntry, 0, len(municipiosParaiba))
	for _, nome := range municipiosParaiba {
		entradas = append(entradas, municipioEntry{
			canonico: nome,
			chave:    normalizer.NormalizeKey(nome),
		})
	}
	return &MunicipioValidator{normalizer: normalizer, entradas: entradas, logger: logger}
}

// Municipios devolve a lista canônica, na ordem do gazetteer.
func (v *MunicipioValidator) Municipios() []string {
	out := make([]string, len(v.entradas))
	for i, e := range v.entradas {
		out[i] = e.canonico
	}
	return out
}

// Validate normaliza o texto bruto e testa a contenção de cada entrada do
// gazetteer, na ordem fixa da lista. O primeiro município contido vence e sua
// grafia original (acentuada) é devolvida. Sem casamento, devolve o sentinel.
//
// O casamento é por contenção de substring, não por igualdade: o ruído ao
// redor (bairro, CEP, sigla do estado) torna as bordas do nome pouco
// confiáveis, então trocamos falsos positivos raros por recall alto.
func (v *MunicipioValidator) Validate(raw string) string {
	chave := v.normalizer.NormalizeKey(raw)
	if chave == "" {
		return models.NaoEncontrado
	}
	for _, e := range v.entradas {
		if strings.Contains(chave, e.chave) {
			return e.canonico
		}
	}
	return models.NaoEncontrado
}
