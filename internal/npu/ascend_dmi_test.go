package npu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmc1992/npustat/internal/npu/base"
)

const dmiServerDevices = `{
  "hardware_brief": {
    "server": {
      "type": "Atlas 300I Pro",
      "devices": [
        {
          "card_id": "0", "chip_id": 0, "device_id": 0,
          "health": "OK", "chip_name": "Ascend 310P3", "temperature": "45 C",
          "ai_core_information": {"ai_core_usage": "3 %"},
          "memory_information": {"used": 1520, "total": 21527},
          "power_information": {"realtime_power": "12.5 W"}
        },
        {
          "card_id": "0", "chip_id": 1, "device_id": 1,
          "health": "OK", "chip_name": "Ascend 310P3", "temperature": "47 C",
          "ai_core_information": {"ai_core_usage": "N/A"},
          "memory_information": {"used": 1600, "total": 21527},
          "power_information": {"realtime_power": "8.25 W"}
        },
        {
          "card_id": "1", "chip_id": 0, "device_id": 2,
          "health": "Alarm", "chip_name": "Ascend 310P3", "temperature": "NA",
          "ai_core_information": {"ai_core_usage": "88 %"},
          "memory_information": {"used": 20000, "total": 21527}
        }
      ]
    }
  }
}`

const dmiCards = `{
  "hardware_brief": {
    "cards": [
      {
        "card_id": 4, "type": "Atlas 300T", "power": "67.1 W",
        "devices": [
          {
            "chip_id": "0", "device_id": "4", "health": "Critical",
            "chip_name": "Ascend 910", "temperature": "71C",
            "ai_core_information": {"ai_core_usage": "100%"},
            "memory_information": {"used": "31000", "total": "32768"},
            "power_information": {"realtime_power": "67.1 W"}
          }
        ]
      }
    ]
  }
}`

func TestParseAscendDMI_GroupsFlatDevices(t *testing.T) {
	cards, err := ParseAscendDMI([]byte(dmiServerDevices))
	require.NoError(t, err)
	require.Len(t, cards, 2)

	first := cards[0]
	assert.Equal(t, "0", first.CardID)
	assert.Equal(t, "Atlas 300I Pro", first.Type)
	assert.Equal(t, "20.75 W", first.Power)
	require.Len(t, first.Chips, 2)
	assert.Equal(t, "0", first.Chips[0].ChipID)
	assert.Equal(t, "1", first.Chips[1].DeviceID)
	assert.Equal(t, base.Known(45), first.Chips[0].Temperature)
	assert.Equal(t, base.Known(3), first.Chips[0].AICoreUsage)
	assert.Equal(t, base.Unknown("N/A"), first.Chips[1].AICoreUsage)
	assert.Equal(t, "1520", first.Chips[0].MemoryUsed.String())
	assert.Equal(t, "12.50 W", first.Chips[0].RealtimePower)

	second := cards[1]
	assert.Equal(t, "1", second.CardID)
	assert.Equal(t, "0.00 W", second.Power)
	require.Len(t, second.Chips, 1)
	assert.Equal(t, base.HealthAlarm, second.Chips[0].Health)
	assert.Equal(t, base.Unknown("NA"), second.Chips[0].Temperature)
	assert.Empty(t, second.Chips[0].RealtimePower)
}

func TestParseAscendDMI_PreGroupedCards(t *testing.T) {
	cards, err := ParseAscendDMI([]byte(dmiCards))
	require.NoError(t, err)
	require.Len(t, cards, 1)

	card := cards[0]
	assert.Equal(t, "4", card.CardID)
	assert.Equal(t, "Atlas 300T", card.Type)
	assert.Equal(t, "67.10 W", card.Power)
	assert.Equal(t, base.HealthCritical, card.Chips[0].Health)
	assert.Equal(t, base.Known(71), card.Chips[0].Temperature)
	assert.Equal(t, base.Known(100), card.Chips[0].AICoreUsage)
	assert.True(t, card.Chips[0].MemoryConsistent())
}

func TestParseAscendDMI_MissingSections(t *testing.T) {
	docs := map[string]string{
		"no hardware brief": `{}`,
		"no server":         `{"hardware_brief": {}}`,
		"no devices":        `{"hardware_brief": {"server": {"type": "Atlas"}}}`,
		"empty cards":       `{"hardware_brief": {"cards": []}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			cards, err := ParseAscendDMI([]byte(doc))
			require.NoError(t, err)
			assert.Empty(t, cards)
		})
	}
}

func TestParseAscendDMI_ServerWithoutType(t *testing.T) {
	doc := `{"hardware_brief": {"server": {"devices": [{"card_id": "0", "chip_id": "0", "health": "weird"}]}}}`
	cards, err := ParseAscendDMI([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, base.UnknownType, cards[0].Type)
	assert.Equal(t, base.HealthUnknown, cards[0].Chips[0].Health)
}

func TestParseAscendDMI_InvalidJSON(t *testing.T) {
	_, err := ParseAscendDMI([]byte("ascend-dmi: command not found"))
	assert.Error(t, err)
}

func TestAscendDMI_Query(t *testing.T) {
	runner := newFakeRunner().
		set("ascend-dmi -v", "  Version: 3.0.0\n").
		set("ascend-dmi -i --format json", dmiServerDevices)

	version, cards, err := AscendDMI{}.Query(context.Background(), runner.run)
	require.NoError(t, err)
	assert.Equal(t, "Version: 3.0.0", version)
	assert.Len(t, cards, 2)
	assert.Equal(t, 1, runner.count("ascend-dmi -v"))
	assert.Equal(t, 1, runner.count("ascend-dmi -i --format json"))
}

func TestAscendDMI_QueryIsIdempotent(t *testing.T) {
	runner := newFakeRunner().
		set("ascend-dmi -v", "3.0.0").
		set("ascend-dmi -i --format json", dmiServerDevices)

	v1, c1, err := AscendDMI{}.Query(context.Background(), runner.run)
	require.NoError(t, err)
	v2, c2, err := AscendDMI{}.Query(context.Background(), runner.run)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, c1, c2)
}

func TestAscendDMI_QueryReportsBadJSON(t *testing.T) {
	runner := newFakeRunner().
		set("ascend-dmi -v", "3.0.0").
		set("ascend-dmi -i --format json", "{")

	_, _, err := AscendDMI{}.Query(context.Background(), runner.run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascend-dmi -i --format json")
}
