// Copyright 2023 The pulse-core Authors
// This file is part of the pulse-core library.
//
// The pulse-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The pulse-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the pulse-core library. If not, see <http://www.gnu.org/licenses/>.

package notifier

import (
	"fmt"

	"github.com/pulsewallet/pulse-core/types"
	"golang.org/x/text/language"
)

// templateKey selects a message template. Kinds without an entry fall
// back to the generic template.
type templateKey struct {
	Kind      types.TransactionKind
	Direction types.Direction
}

// template carries the title and a body format with two verbs: amount and
// chain name.
type template struct {
	Title string
	Body  string
}

// supported lists the locales with translations, first entry is the
// fallback.
var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.German,
	language.French,
	language.Portuguese,
	language.Russian,
	language.SimplifiedChinese,
	language.Korean,
}

var matcher = language.NewMatcher(supported)

var genericKey = templateKey{}

// messages maps locale and key to a template. The set is deliberately
// bounded: unknown kinds use the generic entry instead of growing the
// table.
var messages = map[language.Tag]map[templateKey]template{
	language.English: {
		{types.KindTransfer, types.DirectionIncoming}:      {"Transfer received", "You received %s on %s"},
		{types.KindTransfer, types.DirectionOutgoing}:      {"Transfer sent", "You sent %s on %s"},
		{types.KindTransfer, types.DirectionSelfTransfer}:  {"Transfer", "You moved %s on %s"},
		{types.KindTokenTransfer, types.DirectionIncoming}: {"Token received", "You received %s on %s"},
		{types.KindTokenTransfer, types.DirectionOutgoing}: {"Token sent", "You sent %s on %s"},
		{types.KindTokenApprove, types.DirectionOutgoing}:  {"Approval", "You approved token spending on %[2]s"},
		{types.KindStakeDelegate, types.DirectionOutgoing}: {"Stake", "You staked %s on %s"},
		{types.KindStakeRewards, types.DirectionIncoming}:  {"Rewards", "You claimed rewards of %s on %s"},
		{types.KindSwap, types.DirectionOutgoing}:          {"Swap", "You swapped %s on %s"},
		genericKey: {"Wallet activity", "New activity of %s on %s"},
	},
	language.Spanish: {
		{types.KindTransfer, types.DirectionIncoming}: {"Transferencia recibida", "Recibiste %s en %s"},
		{types.KindTransfer, types.DirectionOutgoing}: {"Transferencia enviada", "Enviaste %s en %s"},
		genericKey: {"Actividad", "Nueva actividad de %s en %s"},
	},
	language.German: {
		{types.KindTransfer, types.DirectionIncoming}: {"Überweisung erhalten", "Du hast %s auf %s erhalten"},
		{types.KindTransfer, types.DirectionOutgoing}: {"Überweisung gesendet", "Du hast %s auf %s gesendet"},
		genericKey: {"Wallet-Aktivität", "Neue Aktivität von %s auf %s"},
	},
	language.French: {
		{types.KindTransfer, types.DirectionIncoming}: {"Transfert reçu", "Vous avez reçu %s sur %s"},
		{types.KindTransfer, types.DirectionOutgoing}: {"Transfert envoyé", "Vous avez envoyé %s sur %s"},
		genericKey: {"Activité", "Nouvelle activité de %s sur %s"},
	},
	language.Portuguese: {
		{types.KindTransfer, types.DirectionIncoming}: {"Transferência recebida", "Você recebeu %s em %s"},
		{types.KindTransfer, types.DirectionOutgoing}: {"Transferência enviada", "Você enviou %s em %s"},
		genericKey: {"Atividade", "Nova atividade de %s em %s"},
	},
	language.Russian: {
		{types.KindTransfer, types.DirectionIncoming}: {"Перевод получен", "Вы получили %s в сети %s"},
		{types.KindTransfer, types.DirectionOutgoing}: {"Перевод отправлен", "Вы отправили %s в сети %s"},
		genericKey: {"Активность", "Новая активность %s в сети %s"},
	},
	language.SimplifiedChinese: {
		{types.KindTransfer, types.DirectionIncoming}: {"收到转账", "您在 %[2]s 上收到 %[1]s"},
		{types.KindTransfer, types.DirectionOutgoing}: {"转账已发送", "您在 %[2]s 上发送了 %[1]s"},
		genericKey: {"钱包动态", "%[2]s 上有 %[1]s 的新动态"},
	},
	language.Korean: {
		{types.KindTransfer, types.DirectionIncoming}: {"전송 받음", "%[2]s에서 %[1]s을(를) 받았습니다"},
		{types.KindTransfer, types.DirectionOutgoing}: {"전송 보냄", "%[2]s에서 %[1]s을(를) 보냈습니다"},
		genericKey: {"지갑 활동", "%[2]s에서 %[1]s의 새 활동"},
	},
}

// localize resolves the device locale against the supported set and
// renders the notification text for the transaction as seen in the given
// direction. Amounts are rendered with the asset's decimals.
func localize(locale string, tx *types.Transaction, dir types.Direction, decimals int32) (title, body string) {
	_, idx := language.MatchStrings(matcher, locale)
	table, ok := messages[supported[idx]]
	if !ok {
		table = messages[language.English]
	}
	tpl, ok := table[templateKey{Kind: tx.Kind, Direction: dir}]
	if !ok {
		tpl, ok = table[genericKey]
		if !ok {
			tpl = messages[language.English][genericKey]
		}
	}
	amount := tx.Value.Decimal(decimals)
	return tpl.Title, fmt.Sprintf(tpl.Body, amount, tx.Asset.Chain.Name())
}
