package navy

import "strings"

// FallbackReply answers a help choice outside 1..8.
const FallbackReply = "Desculpe, não entendi. Por favor digite um número de 1 a 8."

const menu = `Olá! 👋 Sou o Navy, seu assistente virtual da Navis.
Escolha uma das opções abaixo digitando o número correspondente:

1️⃣ Problemas com login ou senha

2️⃣ Dificuldade para navegar na plataforma

3️⃣ Erros ao enviar o formulário

4️⃣ Problemas de exibição

5️⃣ Dificuldades ao atualizar perfil ou foto

6️⃣ Dúvidas sobre segurança e privacidade

7️⃣ Feedback e sugestões de melhoria

8️⃣ Outras dúvidas ou suporte direto
`

var helpResponses = map[string]string{
	"1": `Problemas de login ou senha

Se você não consegue acessar sua conta:
- Verifique se o e-mail está digitado corretamente.
- Clique em “Esqueci minha senha” para redefinir o acesso.
- Veja se o e-mail de recuperação chegou na caixa de spam.
- Se não recebeu o e-mail, entre em contato com suporte@navis.com
🔹 Dica: evite usar navegadores desatualizados, pois podem causar erros de autenticação.`,

	"2": `Dificuldade para navegar na plataforma

Está perdido? Tudo bem! 😅
- Use o menu lateral esquerdo para acessar as principais áreas: Home, Localização, Navegantes, Navy e Perfil.
🔹 Dica: o botão de ajuda (este chat!) pode ser usado em qualquer página.`,

	"3": `Erros ao enviar formulários

Se algo não está sendo enviado corretamente:
- Verifique se todos os campos obrigatórios estão preenchidos.
- Confira o formato dos dados (ex.: CPF, telefone, e-mail).
- Atualize a página e tente novamente.
- Caso o problema persista, envie um print para suporte@navis.com
🔹 Dica: evite caracteres especiais (%, &, #, etc.) em campos de texto.`,

	"4": `Problemas de exibição

Se a tela parecer desconfigurada:
- Atualize a página (Ctrl + R).
- Use navegadores modernos (Chrome, Edge, Firefox).
- Tente limpar o cache do navegador.
🔹 Dica: se estiver no celular, use o modo horizontal ou atualize o app.`,

	"5": `Dificuldades ao atualizar perfil ou foto

Caso sua foto ou informações não apareçam:
- Verifique se o formato da imagem é .jpg ou .png.
- Atualize a página após salvar as alterações.
- Se não carregar, tente novamente com uma imagem menor (menos de 2MB).
🔹 Dica: as mudanças podem demorar alguns segundos para sincronizar.`,

	"6": `Dúvidas sobre segurança e privacidade

Sua segurança é prioridade. 🔐
- Seus dados são protegidos e criptografados.
- Nunca compartilhe sua senha com terceiros.
- A Navis nunca solicita informações pessoais por e-mail.
🔹 Dica: altere sua senha a cada 3 meses para manter sua conta segura.`,

	"7": `Feedback e sugestões de melhoria

Quer sugerir algo novo? ✨
- A Navis adora ouvir seus usuários!
- Envie suas ideias ou sugestões para feedback@navis.com
- Cada mensagem ajuda a deixar a plataforma ainda melhor.
🔹 Dica: melhorias frequentes são baseadas no que vocês pedem!`,

	"8": `Outras dúvidas ou suporte direto

Não encontrou o que procurava?
- Você pode nos contatar pelo e-mail suporte@navis.com
- Atendimento disponível de segunda a sexta, das 9h às 18h.
🔹 Dica: descreva seu problema com detalhes (print + data/hora) para receber ajuda mais rápida.`,
}

// Menu returns the greeting that lists the help topics.
func Menu() string {
	return menu
}

// Help returns the canned answer for a menu choice.
func Help(choice string) string {
	if r, ok := helpResponses[strings.TrimSpace(choice)]; ok {
		return r
	}
	return FallbackReply
}
